package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/filestore"
	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/metrics"
	"github.com/workmait/digestd/internal/node"
	"github.com/workmait/digestd/internal/store"
)

// Config assembles the capabilities of one ingestion strategy. A
// pipeline owns no cross-request state beyond this configuration.
type Config struct {
	Name       string
	Type       Type
	Files      filestore.FileStore
	Parser     Parser
	Splitter   Splitter
	Transforms []Transform
	Store      store.Store
	Logger     *slog.Logger
}

// Ingest is the pipeline executor shared by the vector and graph
// variants; they differ only in backend and transform chain.
type Ingest struct {
	name       string
	typ        Type
	files      filestore.FileStore
	parser     Parser
	splitter   Splitter
	transforms []Transform
	store      store.Store
	logger     *slog.Logger
}

// New builds a pipeline from its configuration, validating the transform
// chain.
func New(cfg Config) (*Ingest, error) {
	switch {
	case cfg.Name == "":
		return nil, fmt.Errorf("%w: strategy name is required", ErrConfiguration)
	case cfg.Type != TypeVector && cfg.Type != TypeGraph:
		return nil, fmt.Errorf("%w: unknown pipeline type %q", ErrConfiguration, cfg.Type)
	case cfg.Files == nil:
		return nil, fmt.Errorf("%w: file store is required", ErrConfiguration)
	case cfg.Parser == nil:
		return nil, fmt.Errorf("%w: parser is required", ErrConfiguration)
	case cfg.Splitter == nil:
		return nil, fmt.Errorf("%w: splitter is required", ErrConfiguration)
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: store is required", ErrConfiguration)
	}

	transforms, err := validateTransforms(cfg.Transforms)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", cfg.Name, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingest{
		name:       cfg.Name,
		typ:        cfg.Type,
		files:      cfg.Files,
		parser:     cfg.Parser,
		splitter:   cfg.Splitter,
		transforms: transforms,
		store:      cfg.Store,
		logger:     logger.With(logging.Strategy(cfg.Name)),
	}, nil
}

// NewVector builds a vector pipeline.
func NewVector(cfg Config) (*Ingest, error) {
	cfg.Type = TypeVector
	return New(cfg)
}

// NewGraph builds a graph pipeline.
func NewGraph(cfg Config) (*Ingest, error) {
	cfg.Type = TypeGraph
	return New(cfg)
}

func (p *Ingest) Name() string { return p.name }

func (p *Ingest) Type() Type { return p.typ }

// Execute resolves the target store, then processes each file in order.
// A failure resolving the store aborts before any file is touched; any
// per-file stage failure is logged, the file is skipped, and the batch
// continues. Returns the node IDs of every file that succeeded.
func (p *Ingest) Execute(ctx context.Context, storeNamespace string, files []event.FileRef, metadata map[string]string) ([]string, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	}()

	handle, err := p.store.GetOrCreate(ctx, storeNamespace)
	if err != nil {
		// No file can succeed without a store: request-fatal.
		return nil, stepErr(StageStore, "", fmt.Errorf("get or create store for namespace %q: %w", storeNamespace, err))
	}

	var indexed []string
	for _, file := range files {
		ids, err := p.processFile(ctx, handle, file, metadata)
		if err != nil {
			stage := StageStep
			var se *StepError
			if errors.As(err, &se) {
				stage = se.Stage
			}
			p.logger.Error("file skipped",
				logging.FileID(file.FileID),
				logging.Namespace(storeNamespace),
				slog.String(logging.FieldStage, string(stage)),
				logging.Error(err))
			metrics.FilesFailed.WithLabelValues(p.name, string(stage)).Inc()
			continue
		}
		indexed = append(indexed, ids...)
		metrics.FilesProcessed.WithLabelValues(p.name).Inc()
		metrics.NodesIndexed.WithLabelValues(p.name).Add(float64(len(ids)))
	}
	return indexed, nil
}

// processFile runs the per-file state machine:
// metadata merge -> file validation -> parse -> split -> transform -> store.
func (p *Ingest) processFile(ctx context.Context, handle store.Handle, file event.FileRef, shared map[string]string) ([]string, error) {
	merged := mergeMetadata(shared, file.Metadata)

	ok, err := p.files.Exists(ctx, file.FilePath)
	if err != nil {
		return nil, stepErr(StageFileService, file.FileID, err)
	}
	if !ok {
		return nil, stepErr(StageFileService, file.FileID, fmt.Errorf("file %q not accessible", file.FilePath))
	}

	docs, err := p.parser.Parse(ctx, file.FilePath, file.FileType, merged)
	if err != nil {
		return nil, stepErr(StageFileLoading, file.FileID, err)
	}

	raw, err := p.splitter.Split(docs, func() string { return node.NewID(file.FileID) })
	if err != nil {
		return nil, stepErr(StageNodeParsing, file.FileID, err)
	}
	for i := range raw {
		raw[i].FileID = file.FileID
	}

	final, err := p.ingestNodes(ctx, raw)
	if err != nil {
		return nil, stepErr(StageNodeIngestion, file.FileID, err)
	}

	ids, err := handle.Add(ctx, final)
	if err != nil {
		return nil, stepErr(StageStoreAddition, file.FileID, err)
	}
	return ids, nil
}

// ingestNodes runs the transform chain and, for structure-aware
// splitters, concatenates the separated base and object node subsets.
func (p *Ingest) ingestNodes(ctx context.Context, nodes []node.Node) ([]node.Node, error) {
	var err error
	for _, t := range p.transforms {
		nodes, err = t.Apply(ctx, nodes)
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", t.Name(), err)
		}
	}

	if sep, ok := p.splitter.(Separator); ok {
		base, object := sep.Separate(nodes)
		return append(base, object...), nil
	}
	return nodes, nil
}

// mergeMetadata merges request metadata with a file's own metadata; the
// file's values win on key collision.
func mergeMetadata(shared, file map[string]string) map[string]string {
	merged := node.CloneMetadata(shared)
	for k, v := range file {
		merged[k] = v
	}
	return merged
}
