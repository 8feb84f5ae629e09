package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workmait/digestd/internal/bus"
	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/service"
)

// Bindings builds the standard binding set: one consumer group per event
// type, each handler decoding its payload and delegating to the service.
// Every handler runs under logging, metrics and dead-letter middleware.
func Bindings(svc *service.Digest, q DeadLetterer, logger *slog.Logger, maxDeliveries int64) []Binding {
	wrap := func(eventType string, h bus.Handler) bus.Handler {
		return Chain(h,
			WithLogging(logger, eventType),
			WithMetrics(eventType),
			WithDeadLetter(q, logger, eventType, maxDeliveries),
		)
	}

	return []Binding{
		{
			EventType: event.TypeAddNodes,
			Group:     event.GroupAddNodes,
			Consumer:  event.ConsumerAddNodes,
			Handler: wrap(event.TypeAddNodes, func(ctx context.Context, msg bus.Message) error {
				req, err := event.DecodeAddNodes(msg.Fields)
				if err != nil {
					return fmt.Errorf("decode %s: %w", event.TypeAddNodes, err)
				}
				_, err = svc.AddNodes(ctx, *req)
				return err
			}),
		},
		{
			EventType: event.TypeDeleteNodes,
			Group:     event.GroupDeleteNodes,
			Consumer:  event.ConsumerDeleteNodes,
			Handler: wrap(event.TypeDeleteNodes, func(ctx context.Context, msg bus.Message) error {
				req, err := event.DecodeDeleteNodes(msg.Fields)
				if err != nil {
					return fmt.Errorf("decode %s: %w", event.TypeDeleteNodes, err)
				}
				return svc.DeleteNodes(ctx, *req)
			}),
		},
		{
			EventType: event.TypeMoveNodes,
			Group:     event.GroupMoveNodes,
			Consumer:  event.ConsumerMoveNodes,
			Handler: wrap(event.TypeMoveNodes, func(ctx context.Context, msg bus.Message) error {
				req, err := event.DecodeMoveNodes(msg.Fields)
				if err != nil {
					return fmt.Errorf("decode %s: %w", event.TypeMoveNodes, err)
				}
				return svc.MoveNodes(ctx, *req)
			}),
		},
		{
			EventType: event.TypeDeleteStore,
			Group:     event.GroupDeleteStore,
			Consumer:  event.ConsumerDeleteStore,
			Handler: wrap(event.TypeDeleteStore, func(ctx context.Context, msg bus.Message) error {
				req, err := event.DecodeDeleteStore(msg.Fields)
				if err != nil {
					return fmt.Errorf("decode %s: %w", event.TypeDeleteStore, err)
				}
				return svc.DeleteStore(ctx, *req)
			}),
		},
	}
}
