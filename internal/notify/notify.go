// Package notify delivers reminder payloads to the configured channels.
// Delivery is best-effort: a channel that is down or misconfigured is
// skipped and logged, never surfaced to the caller, since dose tracking
// has to keep working without live reminders.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kind distinguishes what a reminder is about
type Kind string

const (
	KindDose   Kind = "dose"
	KindRefill Kind = "refill"
	KindMissed Kind = "missed"
)

// Reminder is the payload handed to delivery channels when a trigger
// fires. It carries just enough to render a message; formatting beyond
// the default text is the channel's concern.
type Reminder struct {
	Kind         Kind
	MedicationID int64
	Name         string
	Dosage       string
	Instructions string
	PillsLeft    int
}

// Text renders the default one-line message for the reminder
func (r Reminder) Text() string {
	switch r.Kind {
	case KindRefill:
		return fmt.Sprintf("Refill reminder: %s is down to %d pills", r.Name, r.PillsLeft)
	case KindMissed:
		return fmt.Sprintf("Missed dose: %s (%s)", r.Name, r.Dosage)
	default:
		if r.Instructions != "" {
			return fmt.Sprintf("Time for your medication: %s (%s) — %s", r.Name, r.Dosage, r.Instructions)
		}
		return fmt.Sprintf("Time for your medication: %s (%s)", r.Name, r.Dosage)
	}
}

// Notifier delivers a reminder over one channel
type Notifier interface {
	Name() string
	Send(ctx context.Context, r Reminder) error
}

// Dispatcher fans a reminder out to all configured channels behind a
// shared rate limiter, with a circuit breaker per channel so a flapping
// integration stops being hammered.
type Dispatcher struct {
	channels []*guardedChannel
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type guardedChannel struct {
	notifier Notifier
	breaker  *gobreaker.CircuitBreaker[any]
}

// NewDispatcher creates a dispatcher. ratePerMinute caps outbound
// messages across all channels; zero means a conservative default.
func NewDispatcher(logger *zap.Logger, ratePerMinute int, channels ...Notifier) *Dispatcher {
	if ratePerMinute <= 0 {
		ratePerMinute = 20
	}

	d := &Dispatcher{
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute),
		logger:  logger,
	}

	for _, ch := range channels {
		d.channels = append(d.channels, &guardedChannel{
			notifier: ch,
			breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
				Name:        ch.Name(),
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     2 * time.Minute,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			}),
		})
	}

	return d
}

// Dispatch sends the reminder to every channel. It never returns an
// error; failures are logged and counted by the callers that care.
func (d *Dispatcher) Dispatch(ctx context.Context, r Reminder) (delivered int) {
	if !d.limiter.Allow() {
		d.logger.Warn("Reminder dropped by rate limiter",
			zap.String("medication", r.Name),
			zap.String("kind", string(r.Kind)),
		)
		return 0
	}

	for _, ch := range d.channels {
		_, err := ch.breaker.Execute(func() (any, error) {
			return nil, ch.notifier.Send(ctx, r)
		})
		if err != nil {
			d.logger.Warn("Reminder delivery failed",
				zap.String("channel", ch.notifier.Name()),
				zap.String("medication", r.Name),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// LogNotifier writes reminders to the application log. It is always
// registered so a bare install still surfaces reminders somewhere.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(_ context.Context, r Reminder) error {
	n.logger.Info("Reminder",
		zap.String("kind", string(r.Kind)),
		zap.Int64("medication_id", r.MedicationID),
		zap.String("message", r.Text()),
	)
	return nil
}
