// Package bus provides the durable event stream the digestion core is
// coordinated through: an append-only per-event-type stream with
// consumer-group checkout-and-acknowledge semantics.
//
// Delivery is at-least-once. Entries are delivered in append order on
// first delivery, but an entry whose handler fails stays pending and is
// redelivered after the visibility timeout, so a later entry may be
// acknowledged before an earlier retried one. Strict FIFO under failure
// is explicitly not guaranteed.
package bus

import "context"

// Message is one claimed stream entry.
type Message struct {
	// ID is the stream entry ID assigned by the bus on append.
	ID string

	// Fields is the entry's flat field map.
	Fields map[string]string

	// Deliveries is the number of times this entry has been delivered,
	// including the current delivery.
	Deliveries int64
}

// Handler processes one claimed entry. A nil return acknowledges the
// entry; an error leaves it pending for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Bus is a durable append-only event stream with consumer groups.
type Bus interface {
	// Register idempotently ensures a consumer group exists on the
	// stream for eventType, creating the stream if absent.
	Register(ctx context.Context, eventType, group string) error

	// Publish appends one entry and returns its ID once the bus has
	// durably accepted it. It does not wait for any consumer.
	Publish(ctx context.Context, eventType string, fields map[string]any) (string, error)

	// Consume runs until ctx is done, claiming one entry at a time for
	// the named consumer within the group and invoking handler.
	// Handler failures never terminate the loop.
	Consume(ctx context.Context, eventType, group, consumer string, handler Handler) error
}
