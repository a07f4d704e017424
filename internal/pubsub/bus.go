package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/agbru/lookforge/internal/progress"
)

// DefaultBuffer is the channel capacity given to each subscriber.
const DefaultBuffer = 16

// Subscriber streams the snapshots of one session. The returned channel is
// closed when ctx ends or the returned cancel func is called.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan progress.Snapshot, func(), error)
}

// Bus is an in-process fan-out of snapshots keyed by session id. Publish never
// blocks: a subscriber whose buffer is full misses that snapshot.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	buffer  int
	dropped atomic.Uint64
	closed  bool
}

type subscription struct {
	bus     *Bus
	session string
	ch      chan progress.Snapshot
	stop    chan struct{}
	once    sync.Once
}

// NewBus creates a bus giving each subscriber a channel of the given
// capacity. A non-positive buffer uses DefaultBuffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{subs: make(map[string]map[*subscription]struct{}), buffer: buffer}
}

// Publish delivers snap to every current subscriber of sessionID.
func (b *Bus) Publish(_ context.Context, sessionID string, snap progress.Snapshot) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[sessionID] {
		select {
		case s.ch <- snap:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a subscriber for sessionID.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan progress.Snapshot, func(), error) {
	s := &subscription{bus: b, session: sessionID, ch: make(chan progress.Snapshot, b.buffer), stop: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.stop)
		close(s.ch)
		return s.ch, func() {}, nil
	}
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[*subscription]struct{})
		b.subs[sessionID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				s.close()
			case <-s.stop:
			}
		}()
	}
	return s.ch, s.close, nil
}

// close unregisters the subscription and closes its channel exactly once.
func (s *subscription) close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if set, ok := s.bus.subs[s.session]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.session)
			}
		}
		s.bus.mu.Unlock()
		close(s.stop)
		close(s.ch)
	})
}

// SubscriberCount returns the number of live subscribers of sessionID.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// Dropped returns how many snapshots were discarded for slow subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close ends every subscription. Later subscriptions receive a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*subscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
