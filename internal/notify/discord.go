package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/gmsas95/dosetrack/internal/config"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
)

// DiscordNotifier posts reminders to a channel over the REST API; no
// gateway connection is held open.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(cfg config.DiscordConfig) (*DiscordNotifier, error) {
	if !cfg.Enabled || cfg.Token == "" || cfg.ChannelID == "" {
		return nil, apperrors.ErrChannelNotConfigured
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &DiscordNotifier{session: session, channelID: cfg.ChannelID}, nil
}

func (n *DiscordNotifier) Name() string { return "discord" }

func (n *DiscordNotifier) Send(_ context.Context, r Reminder) error {
	if _, err := n.session.ChannelMessageSend(n.channelID, r.Text()); err != nil {
		return apperrors.Wrap(err, "NOTIF_002", "discord send failed")
	}
	return nil
}
