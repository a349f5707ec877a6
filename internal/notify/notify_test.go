package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeChannel struct {
	name  string
	sent  []Reminder
	err   error
	calls int
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, r Reminder) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, r)
	return nil
}

func TestDispatcherFansOut(t *testing.T) {
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b"}
	d := NewDispatcher(zap.NewNop(), 60, a, b)

	delivered := d.Dispatch(context.Background(), Reminder{
		Kind: KindDose, MedicationID: 1, Name: "Lisinopril", Dosage: "10mg",
	})

	assert.Equal(t, 2, delivered)
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
}

func TestDispatcherSwallowsChannelErrors(t *testing.T) {
	broken := &fakeChannel{name: "broken", err: errors.New("boom")}
	ok := &fakeChannel{name: "ok"}
	d := NewDispatcher(zap.NewNop(), 60, broken, ok)

	delivered := d.Dispatch(context.Background(), Reminder{Kind: KindDose, Name: "X", Dosage: "1mg"})

	assert.Equal(t, 1, delivered)
	assert.Len(t, ok.sent, 1)
}

func TestDispatcherBreakerOpensAfterFailures(t *testing.T) {
	broken := &fakeChannel{name: "broken", err: errors.New("boom")}
	d := NewDispatcher(zap.NewNop(), 600, broken)

	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), Reminder{Kind: KindDose, Name: "X", Dosage: "1mg"})
	}

	// Breaker trips after three consecutive failures; later dispatches
	// stop reaching the channel.
	assert.LessOrEqual(t, broken.calls, 4)
}

func TestDispatcherRateLimit(t *testing.T) {
	ch := &fakeChannel{name: "ch"}
	d := NewDispatcher(zap.NewNop(), 1, ch)

	first := d.Dispatch(context.Background(), Reminder{Kind: KindDose, Name: "A", Dosage: "1mg"})
	assert.Equal(t, 1, first)

	// Burst of one: the second immediate dispatch is dropped
	dropped := 0
	for i := 0; i < 3; i++ {
		if d.Dispatch(context.Background(), Reminder{Kind: KindDose, Name: "B", Dosage: "1mg"}) == 0 {
			dropped++
		}
	}
	assert.Greater(t, dropped, 0)
}

func TestReminderText(t *testing.T) {
	dose := Reminder{Kind: KindDose, Name: "Lisinopril", Dosage: "10mg"}
	assert.Equal(t, "Time for your medication: Lisinopril (10mg)", dose.Text())

	withInstructions := Reminder{Kind: KindDose, Name: "Metformin", Dosage: "500mg", Instructions: "Take with food"}
	assert.Contains(t, withInstructions.Text(), "Take with food")

	refill := Reminder{Kind: KindRefill, Name: "Aspirin", PillsLeft: 8}
	assert.Equal(t, "Refill reminder: Aspirin is down to 8 pills", refill.Text())
}
