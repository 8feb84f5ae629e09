// Package strategies turns declared strategy configurations into a
// populated pipeline registry.
package strategies

import (
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/workmait/digestd/internal/config"
	"github.com/workmait/digestd/internal/filestore"
	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/parser"
	"github.com/workmait/digestd/internal/pipeline"
	"github.com/workmait/digestd/internal/splitter"
	"github.com/workmait/digestd/internal/store"
)

// Deps holds the shared capabilities strategies are built from.
type Deps struct {
	Files  filestore.FileStore
	Stores map[pipeline.Type]store.Store

	// Embedder is nil when embedding is disabled; strategies declaring
	// an embedding transform are then built without one.
	Embedder embeddings.Embedder

	Logger *slog.Logger
}

// BuildRegistry constructs and registers every declared strategy. Any
// invalid declaration fails the whole build, so a partially populated
// registry never serves requests.
func BuildRegistry(cfgs []config.StrategyConfig, deps Deps) (*pipeline.Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := pipeline.NewRegistry()
	for _, sc := range cfgs {
		p, err := build(sc, deps, logger)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", sc.Name, err)
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
		logger.Info("strategy registered",
			logging.Strategy(sc.Name),
			slog.String("type", sc.Type),
			slog.String("splitter", sc.Splitter))
	}
	return registry, nil
}

func build(sc config.StrategyConfig, deps Deps, logger *slog.Logger) (pipeline.Pipeline, error) {
	typ := pipeline.Type(sc.Type)

	st, ok := deps.Stores[typ]
	if !ok {
		return nil, fmt.Errorf("no store backend for pipeline type %q", sc.Type)
	}

	var prs pipeline.Parser
	switch sc.Parser {
	case "", "loader":
		prs = parser.NewLoader(deps.Files, logger)
	case "text":
		prs = parser.NewText(deps.Files)
	default:
		return nil, fmt.Errorf("unknown parser %q", sc.Parser)
	}

	var spl pipeline.Splitter
	switch sc.Splitter {
	case "", "recursive":
		spl = splitter.NewRecursiveCharacter(sc.ChunkSize, sc.ChunkOverlap)
	case "markdown":
		spl = splitter.NewMarkdown(sc.ChunkSize, sc.ChunkOverlap)
	default:
		return nil, fmt.Errorf("unknown splitter %q", sc.Splitter)
	}

	transforms := []pipeline.Transform{
		pipeline.NewAnnotateTransform("strategy", sc.Name),
	}
	if sc.Embedding {
		if deps.Embedder != nil {
			transforms = append(transforms, pipeline.NewEmbeddingTransform(deps.Embedder))
		} else {
			logger.Warn("embedding requested but no embedder configured",
				logging.Strategy(sc.Name))
		}
	}

	return pipeline.New(pipeline.Config{
		Name:       sc.Name,
		Type:       typ,
		Files:      deps.Files,
		Parser:     prs,
		Splitter:   spl,
		Transforms: transforms,
		Store:      st,
		Logger:     logger,
	})
}
