// Package store defines the storage capability consumed by ingestion
// pipelines and provides its backends: OpenSearch for vector namespaces,
// Postgres for graph namespaces, and an in-memory variant for tests and
// development.
package store

import (
	"context"

	"github.com/workmait/digestd/internal/node"
)

// Handle is a single namespace inside a backend.
type Handle interface {
	// Add stores the nodes and returns their IDs.
	Add(ctx context.Context, nodes []node.Node) ([]string, error)

	// DeleteByFileIDs removes every node originating from the given
	// files. Deleting absent files is not an error.
	DeleteByFileIDs(ctx context.Context, fileIDs []string) error
}

// Store is a storage backend partitioned by namespace. Namespace creation
// is memoized: the first caller for a namespace creates it, all others
// reuse the same handle. Implementations are safe for concurrent use.
type Store interface {
	// GetOrCreate resolves the handle for a namespace, lazily creating
	// the underlying collection.
	GetOrCreate(ctx context.Context, namespace string) (Handle, error)

	// Move relocates the files' nodes from the source namespace to the
	// target namespace. Moving absent files is not an error.
	Move(ctx context.Context, source, target string, fileIDs []string) error

	// Drop destroys the namespace and everything in it. Dropping an
	// absent namespace is not an error.
	Drop(ctx context.Context, namespace string) error
}
