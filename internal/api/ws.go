package api

import (
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/adherence"
)

// handleWebSocket streams change events to the client as they happen.
// An optional ?topics=medications,ledger query narrows the stream.
func (s *Server) handleWebSocket(c *websocket.Conn) {
	defer c.Close()

	var topics []adherence.Topic
	if raw := c.Query("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, adherence.Topic(t))
			}
		}
	}

	events, cancel := s.coord.Bus().Subscribe(topics...)
	defer cancel()

	// Reader loop exists only to notice the peer going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(e); err != nil {
				s.logger.Warn("WebSocket write failed", zap.Error(err))
				return
			}
		}
	}
}
