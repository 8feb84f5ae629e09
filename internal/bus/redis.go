package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workmait/digestd/internal/logging"
)

const (
	defaultBlockInterval     = time.Second
	defaultVisibilityTimeout = 30 * time.Second
)

// Redis implements Bus over Redis Streams.
type Redis struct {
	rdb        *redis.Client
	block      time.Duration
	visibility time.Duration
	logger     *slog.Logger
}

// Option configures a Redis bus.
type Option func(*Redis)

// WithBlockInterval bounds how long Consume blocks waiting for a new
// entry before re-checking for reclaimable pending work.
func WithBlockInterval(d time.Duration) Option {
	return func(b *Redis) {
		if d > 0 {
			b.block = d
		}
	}
}

// WithVisibilityTimeout sets the idle time after which an unacknowledged
// entry becomes claimable again.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(b *Redis) {
		if d > 0 {
			b.visibility = d
		}
	}
}

// WithLogger sets the bus logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Redis) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewRedis creates a Redis Streams bus on an existing client.
func NewRedis(rdb *redis.Client, opts ...Option) *Redis {
	b := &Redis{
		rdb:        rdb,
		block:      defaultBlockInterval,
		visibility: defaultVisibilityTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register ensures the consumer group exists, creating the stream if
// absent. A group that already exists is success, not an error.
func (b *Redis) Register(ctx context.Context, eventType, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, eventType, group, "$").Err()
	if err != nil {
		if isBusyGroup(err) {
			b.logger.Debug("consumer group already exists",
				logging.EventType(eventType), slog.String(logging.FieldGroup, group))
			return nil
		}
		return fmt.Errorf("create consumer group %q on %q: %w", group, eventType, err)
	}
	b.logger.Info("created consumer group",
		logging.EventType(eventType), slog.String(logging.FieldGroup, group))
	return nil
}

// Publish appends one entry to the event type's stream.
func (b *Redis) Publish(ctx context.Context, eventType string, fields map[string]any) (string, error) {
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: eventType,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish to %q: %w", eventType, err)
	}
	b.logger.Debug("published event", logging.EventType(eventType), logging.EntryID(id))
	return id, nil
}

// Consume claims entries one at a time and invokes handler, acknowledging
// only on handler success. Pending entries idle past the visibility
// timeout are reclaimed before new entries are read, so failed deliveries
// are eventually retried. The loop exits only when ctx is done.
func (b *Redis) Consume(ctx context.Context, eventType, group, consumer string, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, ok, err := b.next(ctx, eventType, group, consumer)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			b.logger.Error("read from stream failed",
				logging.EventType(eventType), logging.Error(err))
			// Transient bus errors must not kill the loop either.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.block):
			}
			continue
		}
		if !ok {
			continue
		}

		b.logger.Debug("consumed event",
			logging.EventType(eventType), logging.EntryID(msg.ID),
			slog.Int64("deliveries", msg.Deliveries))

		if err := handler(ctx, msg); err != nil {
			// No ack: the entry stays pending and will be redelivered
			// after the visibility timeout.
			b.logger.Error("handler failed, entry left pending",
				logging.EventType(eventType), logging.EntryID(msg.ID), logging.Error(err))
			continue
		}

		if err := b.rdb.XAck(ctx, eventType, group, msg.ID).Err(); err != nil {
			b.logger.Error("ack failed",
				logging.EventType(eventType), logging.EntryID(msg.ID), logging.Error(err))
		}
	}
}

// next claims one entry: first an expired pending entry from any group
// member, otherwise a new entry, blocking up to the configured interval.
func (b *Redis) next(ctx context.Context, eventType, group, consumer string) (Message, bool, error) {
	claimed, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   eventType,
		Group:    group,
		Consumer: consumer,
		MinIdle:  b.visibility,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Message{}, false, fmt.Errorf("autoclaim: %w", err)
	}
	if len(claimed) > 0 {
		m := claimed[0]
		return Message{
			ID:         m.ID,
			Fields:     stringFields(m.Values),
			Deliveries: b.deliveries(ctx, eventType, group, m.ID),
		}, true, nil
	}

	streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{eventType, ">"},
		Count:    1,
		Block:    b.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("readgroup: %w", err)
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			return Message{ID: m.ID, Fields: stringFields(m.Values), Deliveries: 1}, true, nil
		}
	}
	return Message{}, false, nil
}

// deliveries looks up the entry's delivery count from the pending list.
// Falls back to 1 if the lookup fails; the count only feeds DLQ policy.
func (b *Redis) deliveries(ctx context.Context, eventType, group, id string) int64 {
	pending, err := b.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: eventType,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 1
	}
	return pending[0].RetryCount
}

func stringFields(values map[string]any) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch s := v.(type) {
		case string:
			fields[k] = s
		case []byte:
			fields[k] = string(s)
		default:
			fields[k] = fmt.Sprint(v)
		}
	}
	return fields
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
