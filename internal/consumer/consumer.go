// Package consumer runs the event dispatch loops. Each event type gets
// its own consumer group and a dedicated goroutine reading it.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/workmait/digestd/internal/bus"
	"github.com/workmait/digestd/internal/logging"
)

// Binding ties one event type to its consumer group and handler.
type Binding struct {
	EventType string
	Group     string
	Consumer  string
	Handler   bus.Handler
}

// Dispatcher registers every binding's group and runs one consume loop
// per binding until the context is cancelled.
type Dispatcher struct {
	bus      bus.Bus
	logger   *slog.Logger
	bindings []Binding
}

// NewDispatcher builds a dispatcher over the given bus.
func NewDispatcher(b bus.Bus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{bus: b, logger: logger}
}

// Bind adds a binding. Must be called before Run.
func (d *Dispatcher) Bind(bindings ...Binding) {
	d.bindings = append(d.bindings, bindings...)
}

// Run registers all consumer groups, then consumes every binding until
// ctx is cancelled. Registration failure aborts before any loop starts.
func (d *Dispatcher) Run(ctx context.Context) error {
	for _, b := range d.bindings {
		if err := d.bus.Register(ctx, b.EventType, b.Group); err != nil {
			return fmt.Errorf("register group %q on %q: %w", b.Group, b.EventType, err)
		}
	}

	var wg sync.WaitGroup
	for _, b := range d.bindings {
		wg.Add(1)
		go func(b Binding) {
			defer wg.Done()
			d.logger.Info("consumer started",
				logging.EventType(b.EventType),
				slog.String(logging.FieldGroup, b.Group),
				slog.String(logging.FieldConsumer, b.Consumer))
			if err := d.bus.Consume(ctx, b.EventType, b.Group, b.Consumer, b.Handler); err != nil && ctx.Err() == nil {
				d.logger.Error("consumer stopped",
					logging.EventType(b.EventType),
					logging.Error(err))
			}
		}(b)
	}
	wg.Wait()
	return ctx.Err()
}
