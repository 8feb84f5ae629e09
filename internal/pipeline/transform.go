package pipeline

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/workmait/digestd/internal/node"
)

// Transform is a composable step over the node sequence, applied in a
// fixed order after splitting.
type Transform interface {
	// Name identifies the transform; the chain holds at most one
	// transform per name.
	Name() string

	Apply(ctx context.Context, nodes []node.Node) ([]node.Node, error)
}

// embedder is the marker interface identifying embedding transforms.
// A transform chain may contain at most one of these.
type embedder interface {
	embeddingTransform()
}

// IsEmbedding reports whether t is an embedding transform.
func IsEmbedding(t Transform) bool {
	_, ok := t.(embedder)
	return ok
}

// validateTransforms de-duplicates the chain by name and rejects chains
// holding more than one embedding transform.
func validateTransforms(transforms []Transform) ([]Transform, error) {
	seen := make(map[string]bool, len(transforms))
	out := make([]Transform, 0, len(transforms))
	embeddings := 0

	for _, t := range transforms {
		if seen[t.Name()] {
			continue
		}
		seen[t.Name()] = true
		if IsEmbedding(t) {
			embeddings++
			if embeddings > 1 {
				return nil, fmt.Errorf("%w: more than one embedding transform in chain", ErrConfiguration)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// EmbeddingTransform sets each node's vector using an embeddings model.
type EmbeddingTransform struct {
	model embeddings.Embedder
}

// NewEmbeddingTransform wraps an embeddings model as a Transform.
func NewEmbeddingTransform(model embeddings.Embedder) *EmbeddingTransform {
	return &EmbeddingTransform{model: model}
}

func (t *EmbeddingTransform) Name() string { return "embedding" }

func (t *EmbeddingTransform) embeddingTransform() {}

// Apply embeds all node texts in one batch.
func (t *EmbeddingTransform) Apply(ctx context.Context, nodes []node.Node) ([]node.Node, error) {
	if len(nodes) == 0 {
		return nodes, nil
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}

	vectors, err := t.model.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d nodes: %w", len(nodes), err)
	}
	if len(vectors) != len(nodes) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d nodes", len(vectors), len(nodes))
	}

	for i := range nodes {
		nodes[i].Embedding = vectors[i]
	}
	return nodes, nil
}

// AnnotateTransform stamps fixed metadata onto every node, e.g. the
// strategy that produced it.
type AnnotateTransform struct {
	key   string
	value string
}

// NewAnnotateTransform creates a transform that sets key to value on
// each node's metadata.
func NewAnnotateTransform(key, value string) *AnnotateTransform {
	return &AnnotateTransform{key: key, value: value}
}

func (t *AnnotateTransform) Name() string { return "annotate:" + t.key }

func (t *AnnotateTransform) Apply(_ context.Context, nodes []node.Node) ([]node.Node, error) {
	for i := range nodes {
		if nodes[i].Metadata == nil {
			nodes[i].Metadata = make(map[string]string, 1)
		}
		nodes[i].Metadata[t.key] = t.value
	}
	return nodes, nil
}
