// Package notify provides in-process pub/sub fan-out for transient
// completion notifications. Delivery is fire-and-forget: no persistence,
// no replay, no guarantee. Only listeners subscribed at publish time are
// informed.
package notify

import (
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Notification event names.
const (
	DigestComplete = "digest.complete"
)

// Callback receives a published notification's data.
type Callback func(data map[string]string)

// Notifier fans published notifications out to subscribed callbacks.
// Callbacks run asynchronously on a shared worker pool; a slow listener
// never blocks a publisher.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Callback
	nextID int
	pool   *ants.Pool
	logger *slog.Logger
}

// New creates a Notifier with a callback worker pool of the given size.
func New(poolSize int, logger *slog.Logger) (*Notifier, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		subs:   make(map[string]map[int]Callback),
		pool:   pool,
		logger: logger,
	}, nil
}

// Subscribe registers a callback for an event name and returns a
// function that removes the subscription.
func (n *Notifier) Subscribe(event string, cb Callback) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[event] == nil {
		n.subs[event] = make(map[int]Callback)
	}
	id := n.nextID
	n.nextID++
	n.subs[event][id] = cb

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[event], id)
	}
}

// Publish delivers data to every current subscriber of the event.
// Each callback is submitted to the worker pool; submission failures
// (pool closed) are logged and dropped, consistent with the
// no-delivery-guarantee contract.
func (n *Notifier) Publish(event string, data map[string]string) {
	n.mu.RLock()
	callbacks := make([]Callback, 0, len(n.subs[event]))
	for _, cb := range n.subs[event] {
		callbacks = append(callbacks, cb)
	}
	n.mu.RUnlock()

	for _, cb := range callbacks {
		cb := cb
		if err := n.pool.Submit(func() { cb(data) }); err != nil {
			n.logger.Warn("notification dropped", slog.String("event", event), slog.String("error", err.Error()))
		}
	}
}

// Close releases the worker pool. Pending callbacks may be dropped.
func (n *Notifier) Close() {
	n.pool.Release()
}
