package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/filestore"
)

func setupLoader(t *testing.T) (*Loader, *filestore.Local) {
	t.Helper()
	fs, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	return NewLoader(fs, nil), fs
}

func TestParse_TextDocument(t *testing.T) {
	l, fs := setupLoader(t)
	_, err := fs.Write(context.Background(), "notes.txt", strings.NewReader("hello ingestion"))
	require.NoError(t, err)

	docs, err := l.Parse(context.Background(), "notes.txt", event.FileTypeDoc, map[string]string{"tenant": "acme"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello ingestion", docs[0].Text)
	assert.Equal(t, "acme", docs[0].Metadata["tenant"])
}

func TestParse_CSVOneDocumentPerRow(t *testing.T) {
	l, fs := setupLoader(t)
	csv := "name,amount\nwidget,3\ngadget,7\n"
	_, err := fs.Write(context.Background(), "report.csv", strings.NewReader(csv))
	require.NoError(t, err)

	docs, err := l.Parse(context.Background(), "report.csv", event.FileTypeExcel, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].Text, "widget")
	assert.Contains(t, docs[1].Text, "gadget")
}

func TestParse_RequestMetadataWinsOverExtracted(t *testing.T) {
	merged := mergeLoaderMetadata(
		map[string]any{"page": 4, "source": "loader"},
		map[string]string{"source": "request"},
	)
	assert.Equal(t, "4", merged["page"])
	assert.Equal(t, "request", merged["source"])
}

func TestParse_MissingFile(t *testing.T) {
	l, _ := setupLoader(t)
	_, err := l.Parse(context.Background(), "absent.txt", event.FileTypeDoc, nil)
	assert.Error(t, err)
}
