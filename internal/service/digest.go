// Package service implements the digestion operations behind the event
// consumers and the HTTP surface.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/notify"
	"github.com/workmait/digestd/internal/pipeline"
	"github.com/workmait/digestd/internal/store"
)

// Digest coordinates pipeline execution and store maintenance. One
// backing store serves each pipeline type; namespace operations fan out
// across all of them.
type Digest struct {
	registry *pipeline.Registry
	stores   map[pipeline.Type]store.Store
	notifier *notify.Notifier
	logger   *slog.Logger
}

// New builds the digestion service.
func New(registry *pipeline.Registry, stores map[pipeline.Type]store.Store, notifier *notify.Notifier, logger *slog.Logger) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{
		registry: registry,
		stores:   stores,
		notifier: notifier,
		logger:   logger,
	}
}

// AddNodes digests the request's files through every named strategy.
// All strategies are resolved before any file is touched, so a request
// naming an unknown strategy performs no work at all. Returns the node
// IDs written across all strategies.
func (d *Digest) AddNodes(ctx context.Context, req event.AddNodesRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("add nodes: %w", err)
	}

	pipelines, err := d.registry.ResolveAll(req.Strategies)
	if err != nil {
		return nil, fmt.Errorf("add nodes: %w", err)
	}

	var indexed []string
	for _, p := range pipelines {
		ns := pipeline.Namespace(req.Namespace, p.Type())
		ids, err := p.Execute(ctx, ns, req.Files, req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", p.Name(), err)
		}
		d.logger.Info("strategy complete",
			logging.Strategy(p.Name()),
			logging.Namespace(ns),
			slog.Int("nodes", len(ids)))
		indexed = append(indexed, ids...)
	}

	if d.notifier != nil {
		d.notifier.Publish(notify.DigestComplete, map[string]string{
			"namespace": req.Namespace,
			"nodes":     strconv.Itoa(len(indexed)),
			"files":     strconv.Itoa(len(req.Files)),
		})
	}
	return indexed, nil
}

// DeleteNodes removes the files' nodes from every pipeline-type
// namespace derived from the request namespace. Absent namespaces and
// unknown file IDs are ignored.
func (d *Digest) DeleteNodes(ctx context.Context, req event.DeleteNodesRequest) error {
	if req.Namespace == "" {
		return fmt.Errorf("delete nodes: namespace is required")
	}
	for typ, st := range d.stores {
		ns := pipeline.Namespace(req.Namespace, typ)
		handle, err := st.GetOrCreate(ctx, ns)
		if err != nil {
			return fmt.Errorf("delete nodes in %q: %w", ns, err)
		}
		if err := handle.DeleteByFileIDs(ctx, req.FileIDs); err != nil {
			return fmt.Errorf("delete nodes in %q: %w", ns, err)
		}
	}
	return nil
}

// MoveNodes relocates the files' nodes from the source namespace to the
// target namespace for every pipeline type.
func (d *Digest) MoveNodes(ctx context.Context, req event.MoveNodesRequest) error {
	if req.SourceNamespace == "" || req.TargetNamespace == "" {
		return fmt.Errorf("move nodes: source and target namespaces are required")
	}
	for typ, st := range d.stores {
		source := pipeline.Namespace(req.SourceNamespace, typ)
		target := pipeline.Namespace(req.TargetNamespace, typ)
		if err := st.Move(ctx, source, target, req.FileIDs); err != nil {
			return fmt.Errorf("move nodes %q -> %q: %w", source, target, err)
		}
	}
	return nil
}

// DeleteStore destroys every pipeline-type store under the namespace.
// Dropping a namespace that was never written is a no-op.
func (d *Digest) DeleteStore(ctx context.Context, req event.DeleteStoreRequest) error {
	if req.Namespace == "" {
		return fmt.Errorf("delete store: namespace is required")
	}
	for typ, st := range d.stores {
		ns := pipeline.Namespace(req.Namespace, typ)
		if err := st.Drop(ctx, ns); err != nil {
			return fmt.Errorf("drop store %q: %w", ns, err)
		}
	}
	return nil
}
