// Package parser extracts documents from uploaded files. File contents
// are read through the file store and decoded per file type.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/filestore"
	"github.com/workmait/digestd/internal/node"
)

// Loader parses files into documents using the loader matching the
// declared file type. Unknown structure falls back to plain text.
type Loader struct {
	files  filestore.FileStore
	logger *slog.Logger
}

// NewLoader builds a Loader reading through the given file store.
func NewLoader(files filestore.FileStore, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{files: files, logger: logger}
}

// Parse reads the file at path and returns its documents, each carrying
// the supplied metadata merged over any metadata the loader extracted.
func (l *Loader) Parse(ctx context.Context, path string, fileType event.FileType, metadata map[string]string) ([]node.Document, error) {
	rc, err := l.files.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	docs, err := l.load(ctx, raw, fileType)
	if err != nil {
		return nil, fmt.Errorf("parse %q as %s: %w", path, fileType, err)
	}

	l.logger.Debug("file parsed",
		slog.String("path", path),
		slog.String("file_type", string(fileType)),
		slog.Int("documents", len(docs)))

	out := make([]node.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, node.Document{
			Text:     d.PageContent,
			Metadata: mergeLoaderMetadata(d.Metadata, metadata),
		})
	}
	return out, nil
}

func (l *Loader) load(ctx context.Context, raw []byte, fileType event.FileType) ([]schema.Document, error) {
	switch fileType {
	case event.FileTypePDF:
		return documentloaders.NewPDF(bytes.NewReader(raw), int64(len(raw))).Load(ctx)
	case event.FileTypeExcel:
		// Spreadsheets arrive exported as CSV: one document per row.
		return documentloaders.NewCSV(bytes.NewReader(raw)).Load(ctx)
	case event.FileTypeDoc, event.FileTypePPT:
		return documentloaders.NewText(bytes.NewReader(raw)).Load(ctx)
	default:
		l.logger.Warn("no loader for file type, treating as text",
			slog.String("file_type", string(fileType)))
		return documentloaders.NewText(bytes.NewReader(raw)).Load(ctx)
	}
}

// mergeLoaderMetadata flattens loader-extracted metadata (page numbers,
// row indices) under the request metadata; request values win.
func mergeLoaderMetadata(extracted map[string]any, request map[string]string) map[string]string {
	merged := make(map[string]string, len(extracted)+len(request))
	for k, v := range extracted {
		merged[k] = fmt.Sprint(v)
	}
	for k, v := range request {
		merged[k] = v
	}
	return merged
}
