package adherence

import (
	"sync"

	"github.com/google/uuid"
)

// Topic identifies a class of change events
type Topic string

const (
	TopicMedications Topic = "medications"
	TopicLedger      Topic = "ledger"
	TopicAggregate   Topic = "aggregate"
)

// Event is pushed to subscribers whenever a write changes what readers
// would see. Payload is the fresh value for the topic so consumers don't
// have to re-query.
type Event struct {
	Topic   Topic       `json:"topic"`
	Date    string      `json:"date,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Bus is the in-process push-on-change read model. Subscribers get a
// buffered channel; a subscriber that stops draining loses events rather
// than blocking writers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	topics map[Topic]bool
	ch     chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// Subscribe returns a channel of events for the given topics (all topics
// when none are named) and a cancel function that must be called to
// release the subscription.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	sub := &subscriber{
		topics: make(map[Topic]bool, len(topics)),
		ch:     make(chan Event, 16),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	id := uuid.NewString()

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers the event to every matching subscriber
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[e.Topic] {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Slow subscriber: drop instead of blocking the writer
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
