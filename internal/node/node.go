// Package node defines the unit types flowing through digestion pipelines:
// documents produced by file parsing and nodes produced by splitting.
package node

import "github.com/google/uuid"

// Document is a parsed unit of a source file before splitting.
type Document struct {
	// Text is the extracted content of this portion of the file.
	Text string

	// Metadata carries request and file metadata attached at parse time.
	Metadata map[string]string
}

// Node is the atomic unit of indexable content produced from a source file.
type Node struct {
	// ID uniquely identifies the node. IDs are composed from the source
	// file ID plus a fresh suffix, so re-ingesting the same file never
	// reuses an ID.
	ID string

	// FileID identifies the source file this node was extracted from.
	FileID string

	// Text is the node content.
	Text string

	// Metadata carries the merged request and file metadata.
	Metadata map[string]string

	// Embedding is the vector representation, set by an embedding
	// transform. Empty until embedded.
	Embedding []float32

	// Object marks structured content (e.g. tables) separated from base
	// text nodes by a structure-aware splitter.
	Object bool
}

// NewID returns a node identifier derived from the file ID with a fresh
// unique suffix appended.
func NewID(fileID string) string {
	return fileID + "#" + uuid.NewString()
}

// CloneMetadata returns a shallow copy of m, never nil.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
