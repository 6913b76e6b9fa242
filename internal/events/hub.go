// Package events fans out server-side changes to connected browser tabs.
//
// Two event types are carried: "storage", naming a store key that changed
// for the subscriber's origin, and "withdrawal", a decorative payout toast
// that goes to every subscriber.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/DukeRupert/surveypro/internal/kv"
	"github.com/DukeRupert/surveypro/internal/metrics"
)

// Event types.
const (
	TypeStorage    = "storage"
	TypeWithdrawal = "withdrawal"
)

// Event is one message for subscribers. An empty Origin is a broadcast.
type Event struct {
	Type   string
	Origin string
	Data   any
}

// StorageChange is the payload of a storage event.
type StorageChange struct {
	Key string `json:"key"`
}

// subscriberBuffer is how many undelivered events a subscriber may lag by
// before new ones are dropped.
const subscriberBuffer = 16

type subscriber struct {
	origin string
	ch     chan Event
}

// Hub delivers published events to subscribers without ever blocking the
// publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	logger *slog.Logger

	// Backoff bounds for re-opening a store's change feed.
	resubscribeDelay    time.Duration
	maxResubscribeDelay time.Duration
}

// Default backoff bounds for re-opening a store's change feed.
const (
	DefaultResubscribeDelay    = time.Second
	DefaultMaxResubscribeDelay = 30 * time.Second
)

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:                make(map[*subscriber]struct{}),
		logger:              logger,
		resubscribeDelay:    DefaultResubscribeDelay,
		maxResubscribeDelay: DefaultMaxResubscribeDelay,
	}
}

// Subscribe registers a subscriber for origin. The returned cancel func
// must be called to release it; it closes the channel.
func (h *Hub) Subscribe(origin string) (<-chan Event, func()) {
	sub := &subscriber{origin: origin, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.drop(sub)
		})
	}
	return sub.ch, cancel
}

// drop unregisters sub and closes its channel. h.mu must be held.
func (h *Hub) drop(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	metrics.EventSubscribers.Dec()
}

// Close ends every subscription. Later subscribers get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		h.drop(sub)
	}
}

// Publish hands ev to every matching subscriber whose buffer has room.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if ev.Origin != "" && ev.Origin != sub.origin {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			metrics.EventsDropped.WithLabelValues(ev.Type).Inc()
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ChangeWatcher is the part of kv.Store the forwarder needs.
type ChangeWatcher interface {
	Watch(ctx context.Context) (<-chan kv.Change, error)
}

// ForwardStoreChanges publishes a storage event for every watched key that
// changes in store. When the store's feed ends or cannot be opened, it
// subscribes again with exponential backoff. It returns only when ctx is
// done.
func (h *Hub) ForwardStoreChanges(ctx context.Context, store ChangeWatcher) error {
	for {
		var changes <-chan kv.Change
		backoff := retry.WithCappedDuration(h.maxResubscribeDelay, retry.NewExponential(h.resubscribeDelay))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var err error
			changes, err = store.Watch(ctx)
			if err != nil {
				h.logger.Warn("store change feed unavailable, retrying", "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return ctx.Err()
		}

		h.logger.Info("forwarding store changes to event subscribers")
		h.forward(changes)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Error("store change feed ended, resubscribing")

		// A feed that opens and closes at once must not spin.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.resubscribeDelay):
		}
	}
}

// forward publishes changes until the channel is closed.
func (h *Hub) forward(changes <-chan kv.Change) {
	for change := range changes {
		if !kv.IsWatchedKey(change.Key) {
			continue
		}
		h.Publish(Event{
			Type:   TypeStorage,
			Origin: change.Origin,
			Data:   StorageChange{Key: change.Key},
		})
	}
}
