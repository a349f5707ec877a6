package adherence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribeReceivesMatchingTopic(t *testing.T) {
	bus := NewBus()

	events, cancel := bus.Subscribe(TopicLedger)
	defer cancel()

	bus.Publish(Event{Topic: TopicMedications})
	bus.Publish(Event{Topic: TopicLedger, Date: "2026-09-01"})

	select {
	case e := <-events:
		assert.Equal(t, TopicLedger, e.Topic)
		assert.Equal(t, "2026-09-01", e.Date)
	case <-time.After(time.Second):
		t.Fatal("expected a ledger event")
	}

	select {
	case e := <-events:
		t.Fatalf("unexpected event %q", e.Topic)
	default:
	}
}

func TestBusSubscribeAllTopics(t *testing.T) {
	bus := NewBus()

	events, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{Topic: TopicMedications})
	bus.Publish(Event{Topic: TopicAggregate})

	received := 0
	for received < 2 {
		select {
		case <-events:
			received++
		case <-time.After(time.Second):
			t.Fatalf("received %d of 2 events", received)
		}
	}
}

func TestBusCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus()

	_, cancel := bus.Subscribe(TopicLedger)
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	assert.Equal(t, 0, bus.SubscriberCount())

	// Double cancel is a no-op
	cancel()
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()

	events, cancel := bus.Subscribe(TopicLedger)
	defer cancel()

	// Channel buffer is 16, a slow consumer must not block publishers.
	for i := 0; i < 40; i++ {
		bus.Publish(Event{Topic: TopicLedger})
	}

	drained := 0
	for {
		select {
		case <-events:
			drained++
		default:
			assert.Equal(t, 16, drained)
			return
		}
	}
}
