package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/workmait/digestd/internal/bus"
	"github.com/workmait/digestd/internal/dlq"
	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/metrics"
)

// Middleware wraps a bus handler with cross-cutting behavior.
type Middleware func(bus.Handler) bus.Handler

// Chain applies the middlewares to h, outermost first.
func Chain(h bus.Handler, mws ...Middleware) bus.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithLogging logs each delivery and its outcome.
func WithLogging(logger *slog.Logger, eventType string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next bus.Handler) bus.Handler {
		return func(ctx context.Context, msg bus.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			attrs := []any{
				logging.EventType(eventType),
				logging.EntryID(msg.ID),
				slog.Int64("deliveries", msg.Deliveries),
				slog.Duration("took", time.Since(start)),
			}
			if err != nil {
				logger.Error("event failed", append(attrs, logging.Error(err))...)
				return err
			}
			logger.Info("event handled", attrs...)
			return nil
		}
	}
}

// WithMetrics counts deliveries and their outcome.
func WithMetrics(eventType string) Middleware {
	return func(next bus.Handler) bus.Handler {
		return func(ctx context.Context, msg bus.Message) error {
			metrics.EventsConsumed.WithLabelValues(eventType).Inc()
			if err := next(ctx, msg); err != nil {
				metrics.EventsFailed.WithLabelValues(eventType).Inc()
				return err
			}
			metrics.EventsAcked.WithLabelValues(eventType).Inc()
			return nil
		}
	}
}

// DeadLetterer persists an event that exhausted its delivery budget.
type DeadLetterer interface {
	Write(ctx context.Context, entry dlq.Entry) error
}

// WithDeadLetter diverts an event to the dead-letter queue once it has
// failed maxDeliveries times. The diverted event is acknowledged so it
// stops blocking redelivery; if the dead-letter write itself fails, the
// original error is returned and the event stays pending.
func WithDeadLetter(q DeadLetterer, logger *slog.Logger, eventType string, maxDeliveries int64) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next bus.Handler) bus.Handler {
		return func(ctx context.Context, msg bus.Message) error {
			err := next(ctx, msg)
			if err == nil {
				return nil
			}
			if q == nil || maxDeliveries <= 0 || msg.Deliveries < maxDeliveries {
				return err
			}
			entry := dlq.Entry{
				EventType:  eventType,
				EntryID:    msg.ID,
				Fields:     msg.Fields,
				Error:      err.Error(),
				Deliveries: msg.Deliveries,
			}
			if dlqErr := q.Write(ctx, entry); dlqErr != nil {
				logger.Error("dead-letter write failed, event stays pending",
					logging.EventType(eventType),
					logging.EntryID(msg.ID),
					logging.Error(dlqErr))
				return err
			}
			return nil
		}
	}
}
