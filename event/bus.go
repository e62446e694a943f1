// Package event provides the in-process publish/subscribe bus for
// execution and emergency lifecycle notifications.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 64

// Bus fans out envelopes to subscribers by topic. Publishing never
// blocks: a subscriber that falls behind its buffer loses the envelope,
// which is logged and dropped. Notifications are best-effort; the
// execution history remains the durable audit record.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	logger *slog.Logger
	buffer int
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// WithBuffer sets the per-subscription channel capacity.
func WithBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: slog.Default(),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is one subscriber's feed. Receive envelopes from C and
// call Cancel when done.
type Subscription struct {
	C <-chan Envelope

	bus    *Bus
	ch     chan Envelope
	topics map[string]struct{}
	once   sync.Once
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

func (s *Subscription) matches(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Subscribe registers a subscriber for the given topics. With no topics
// the subscription receives every envelope.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		bus:    b,
		ch:     make(chan Envelope, b.buffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	sub.C = sub.ch
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish marshals the payload and fans the envelope out to matching
// subscribers.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event: publish %q: %w", topic, err)
	}

	env := Envelope{
		ID:        id.NewEventID(),
		Topic:     topic,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &env, nil
	}
	for sub := range b.subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			b.logger.Warn("event dropped, subscriber buffer full",
				"topic", topic,
				"event_id", env.ID.String(),
			)
		}
	}
	return &env, nil
}

// Close cancels every subscription. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
