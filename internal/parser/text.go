package parser

import (
	"context"
	"fmt"
	"io"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/filestore"
	"github.com/workmait/digestd/internal/node"
)

// Text reads the whole file as a single plain-text document, ignoring
// the declared file type.
type Text struct {
	files filestore.FileStore
}

// NewText builds a Text parser reading through the given file store.
func NewText(files filestore.FileStore) *Text {
	return &Text{files: files}
}

func (p *Text) Parse(ctx context.Context, path string, _ event.FileType, metadata map[string]string) ([]node.Document, error) {
	rc, err := p.files.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return []node.Document{{Text: string(raw), Metadata: node.CloneMetadata(metadata)}}, nil
}
