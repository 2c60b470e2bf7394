// Package bus fans out the notifications of one platform to its subscribers.
package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOutboundSize   = 1024
	DefaultSubscriberSize = 256
)

// Subscription receives the notifications of one platform.
type Subscription struct {
	ID    string
	Token string

	bus    *Bus
	ch     chan events.Notification
	mu     sync.Mutex
	closed bool
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan events.Notification {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

func (s *Subscription) send(n events.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Stats describes a bus.
type Stats struct {
	Platform    string `json:"platform"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
}

// Bus is the broadcast channel of one platform.
type Bus struct {
	platform string
	subSize  int

	mu   sync.RWMutex
	subs map[*Subscription]bool

	outbound chan events.Notification

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a bus. Call Run to start delivering.
func New(platform string) *Bus {
	return NewWithSizes(platform, DefaultOutboundSize, DefaultSubscriberSize)
}

// NewWithSizes creates a bus with explicit buffer sizes.
func NewWithSizes(platform string, outbound, perSubscriber int) *Bus {
	return &Bus{
		platform: platform,
		subSize:  perSubscriber,
		subs:     make(map[*Subscription]bool),
		outbound: make(chan events.Notification, outbound),
	}
}

// Platform returns the platform name.
func (b *Bus) Platform() string { return b.platform }

// Subscribe registers a subscriber. Notifications whose origin equals token
// are not delivered to it; an empty token receives everything.
func (b *Bus) Subscribe(token string) *Subscription {
	s := &Subscription{
		ID:    uuid.NewString(),
		Token: token,
		bus:   b,
		ch:    make(chan events.Notification, b.subSize),
	}

	b.mu.Lock()
	b.subs[s] = true
	count := len(b.subs)
	b.mu.Unlock()

	log.Debug().
		Str("platform", b.platform).
		Str("subscription_id", s.ID).
		Int("subscribers", count).
		Msg("subscriber registered")
	return s
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()

	if ok {
		s.close()
		log.Debug().
			Str("platform", b.platform).
			Str("subscription_id", s.ID).
			Msg("subscriber unregistered")
	}
}

// Publish queues a notification, waiting for room in the outbound queue.
func (b *Bus) Publish(ctx context.Context, n events.Notification) error {
	select {
	case b.outbound <- n:
		b.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish queues a notification unless the outbound queue is full.
func (b *Bus) TryPublish(n events.Notification) bool {
	select {
	case b.outbound <- n:
		b.published.Add(1)
		return true
	default:
		log.Warn().
			Str("platform", b.platform).
			Str("type", string(n.Type)).
			Msg("outbound queue full, dropping notification")
		return false
	}
}

// Run delivers queued notifications until ctx is cancelled, then closes
// every subscription.
func (b *Bus) Run(ctx context.Context) {
	defer b.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-b.outbound:
			b.deliver(n)
		}
	}
}

func (b *Bus) deliver(n events.Notification) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		if s.Token != "" && s.Token == n.Origin {
			continue
		}
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	var slow []*Subscription
	for _, s := range targets {
		if s.send(n) {
			b.delivered.Add(1)
			continue
		}
		b.dropped.Add(1)
		slow = append(slow, s)
	}

	for _, s := range slow {
		log.Warn().
			Str("platform", b.platform).
			Str("subscription_id", s.ID).
			Msg("subscriber buffer full, closing subscription")
		b.Unsubscribe(s)
	}

	log.Debug().
		Str("platform", b.platform).
		Str("type", string(n.Type)).
		Int("subscribers", len(targets)).
		Msg("notification broadcasted")
}

func (b *Bus) closeAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]bool)
	b.mu.Unlock()

	for s := range subs {
		s.close()
	}
}

// Stats returns counters of the bus.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	count := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Platform:    b.platform,
		Subscribers: count,
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
	}
}
