// Package eventbus fans out durable and ephemeral event envelopes to live
// subscribers. It never persists anything; the storage backend is the
// system of record for durable events (identified by a populated EventID
// and StreamSeq).
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/agentrt/core/internal/acp"
)

// DefaultBacklog is the per-subscriber ring buffer size. A publisher never
// blocks on a slow subscriber: once the ring fills, the oldest envelope is
// dropped and the subscriber is told how many it missed.
const DefaultBacklog = 256

// Lagged is delivered on a subscriber's channel in place of the envelopes it
// missed, once its backlog ring has overflowed.
type Lagged struct {
	SessionID string
	Missed    uint64
}

// Closed is delivered once by the bus's Close, when the subscriber's buffer
// has room for it; the channel is closed immediately after. Unsubscribe
// closes the channel without sending a Closed marker.
type Closed struct {
	SessionID string
}

// Envelope is whatever a subscriber receives on its channel: an acp.Event,
// a Lagged marker, or a Closed marker.
type Envelope any

type subscriber struct {
	id        uint64
	sessionID string // "" means "every session"
	ch        chan Envelope
	missed    uint64
	mu        sync.Mutex
	closed    bool
}

// Bus is the in-process fan-out described in spec §4.2. The gochannel
// pub/sub is wired in as the underlying transport (grounded on the
// teacher's watermill-based internal/event/bus.go) so a future out-of-
// process backend only has to swap the Publisher/Subscriber, not this
// type's public surface.
type Bus struct {
	log *zerolog.Logger

	pubsub *gochannel.GoChannel

	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	closed      bool
}

// New constructs a Bus. log may be nil, in which case a disabled logger is
// used.
func New(log *zerolog.Logger) *Bus {
	if log == nil {
		disabled := zerolog.Nop()
		log = &disabled
	}
	return &Bus{
		log: log,
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: int64(DefaultBacklog), Persistent: false},
			watermill.NopLogger{},
		),
		subscribers: make(map[uint64]*subscriber),
	}
}

// Subscribe registers a subscriber for one session's envelopes. Passing ""
// subscribes to every session. Returns the receive channel and an
// unsubscribe function; the channel is closed once Unsubscribe runs or the
// bus itself closes.
func (b *Bus) Subscribe(sessionID string) (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := atomic.AddUint64(&b.nextID, 1)
	sub := &subscriber{
		id:        id,
		sessionID: sessionID,
		ch:        make(chan Envelope, DefaultBacklog),
	}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subscribers[id] = sub
	return sub.ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		sub.closeOnce()
	}
}

func (sub *subscriber) closeOnce() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// Publish delivers ev to every matching subscriber, never blocking the
// caller: a full subscriber buffer causes that subscriber (and only that
// one) to drop its oldest pending envelope and accrue a Lagged count,
// exactly as spec §4.2 requires.
func (b *Bus) Publish(ev acp.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.sessionID == "" || sub.sessionID == ev.SessionID {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscriber, ev acp.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}

	select {
	case sub.ch <- ev:
		return
	default:
	}

	// Buffer is full: evict the two oldest pending envelopes, one slot for a
	// Lagged marker telling the subscriber how many it missed and one for
	// the newest envelope, rather than blocking the publisher.
	for i := 0; i < 2; i++ {
		select {
		case <-sub.ch:
			sub.missed++
		default:
		}
	}
	select {
	case sub.ch <- Lagged{SessionID: ev.SessionID, Missed: sub.missed}:
		sub.missed = 0
	default:
	}
	select {
	case sub.ch <- ev:
	default:
		b.log.Warn().Str("session_id", ev.SessionID).Msg("eventbus: subscriber still full after eviction, dropping envelope")
		sub.missed++
	}
}

// Closed reports whether Close has already run, for internal/health's
// readiness check.
func (b *Bus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close shuts every subscriber channel down after delivering a final Closed
// marker; Publish becomes a no-op afterward.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.subscribers = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- Closed{SessionID: sub.sessionID}:
		default:
		}
		sub.closeOnce()
	}
	return b.pubsub.Close()
}
