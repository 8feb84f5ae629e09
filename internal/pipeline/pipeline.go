// Package pipeline turns batches of file references into stored, indexed
// nodes. A pipeline is a named, pre-configured combination of parser,
// node splitter, transform chain, and target store, resolvable by
// strategy name through a Registry built once at startup.
package pipeline

import (
	"context"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/node"
)

// Type distinguishes the storage backend family a pipeline targets.
type Type string

const (
	TypeVector Type = "vector"
	TypeGraph  Type = "graph"
)

// Namespace composes the store namespace for a caller namespace and
// pipeline type. The type is part of the key, so two pipeline types for
// the same logical namespace never collide.
func Namespace(namespace string, t Type) string {
	return namespace + ":" + string(t)
}

// Pipeline executes one ingestion strategy.
type Pipeline interface {
	// Name is the strategy name the pipeline is registered under.
	Name() string

	// Type reports the backend family.
	Type() Type

	// Execute processes the files into the store namespace, isolating
	// per-file failures, and returns the node IDs of all files that
	// succeeded. Only a failure to resolve the target store itself
	// returns an error.
	Execute(ctx context.Context, storeNamespace string, files []event.FileRef, metadata map[string]string) ([]string, error)
}

// Parser extracts documents from a source file, attaching the merged
// request metadata to each.
type Parser interface {
	Parse(ctx context.Context, path string, fileType event.FileType, metadata map[string]string) ([]node.Document, error)
}

// Splitter splits documents into raw nodes, assigning each node an ID
// from the supplied generator.
type Splitter interface {
	Split(docs []node.Document, nextID func() string) ([]node.Node, error)
}

// Separator is implemented by structure-aware splitters that can divide
// nodes into base content nodes and structured object nodes (tables).
type Separator interface {
	Separate(nodes []node.Node) (base, object []node.Node)
}
