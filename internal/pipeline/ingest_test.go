package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/node"
	"github.com/workmait/digestd/internal/store"
)

// Test fakes for the pipeline capabilities. Each can be pointed at a
// single file ID to fail for, to exercise per-file isolation.

type fakeFiles struct {
	missing map[string]bool
}

func (f *fakeFiles) Exists(_ context.Context, path string) (bool, error) {
	return !f.missing[path], nil
}

func (f *fakeFiles) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("content of " + path)), nil
}

type fakeParser struct {
	failPath string
}

func (p *fakeParser) Parse(_ context.Context, path string, _ event.FileType, metadata map[string]string) ([]node.Document, error) {
	if p.failPath != "" && p.failPath == path {
		return nil, errors.New("parse failed")
	}
	return []node.Document{{Text: "parsed " + path, Metadata: metadata}}, nil
}

type fakeSplitter struct {
	failText string
	perDoc   int
}

func (s *fakeSplitter) Split(docs []node.Document, nextID func() string) ([]node.Node, error) {
	per := s.perDoc
	if per == 0 {
		per = 1
	}
	var out []node.Node
	for _, d := range docs {
		if s.failText != "" && strings.Contains(d.Text, s.failText) {
			return nil, errors.New("split failed")
		}
		for i := 0; i < per; i++ {
			out = append(out, node.Node{ID: nextID(), Text: d.Text, Metadata: d.Metadata})
		}
	}
	return out, nil
}

type failingTransform struct {
	failText string
}

func (t *failingTransform) Name() string { return "failing" }

func (t *failingTransform) Apply(_ context.Context, nodes []node.Node) ([]node.Node, error) {
	for _, n := range nodes {
		if strings.Contains(n.Text, t.failText) {
			return nil, errors.New("transform failed")
		}
	}
	return nodes, nil
}

type failingStore struct{}

func (failingStore) GetOrCreate(context.Context, string) (store.Handle, error) {
	return nil, errors.New("backend unavailable")
}
func (failingStore) Move(context.Context, string, string, []string) error { return nil }
func (failingStore) Drop(context.Context, string) error                   { return nil }

type failingHandleStore struct {
	store.Store
	failFileID string
}

func (s *failingHandleStore) GetOrCreate(ctx context.Context, ns string) (store.Handle, error) {
	h, err := s.Store.GetOrCreate(ctx, ns)
	if err != nil {
		return nil, err
	}
	return &failingHandle{Handle: h, failFileID: s.failFileID}, nil
}

type failingHandle struct {
	store.Handle
	failFileID string
}

func (h *failingHandle) Add(ctx context.Context, nodes []node.Node) ([]string, error) {
	for _, n := range nodes {
		if n.FileID == h.failFileID {
			return nil, errors.New("add rejected")
		}
	}
	return h.Handle.Add(ctx, nodes)
}

func testFiles(n int) []event.FileRef {
	files := make([]event.FileRef, n)
	for i := range files {
		files[i] = event.FileRef{
			FileID:   fmt.Sprintf("file-%d", i),
			FileType: event.FileTypePDF,
			FilePath: fmt.Sprintf("docs/file-%d.pdf", i),
			Metadata: map[string]string{"title": gofakeit.BookTitle()},
		}
	}
	return files
}

func newTestPipeline(t *testing.T, cfg Config) *Ingest {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	if cfg.Type == "" {
		cfg.Type = TypeVector
	}
	if cfg.Files == nil {
		cfg.Files = &fakeFiles{}
	}
	if cfg.Parser == nil {
		cfg.Parser = &fakeParser{}
	}
	if cfg.Splitter == nil {
		cfg.Splitter = &fakeSplitter{}
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestExecute_AllFilesSucceed(t *testing.T) {
	mem := store.NewMemory()
	p := newTestPipeline(t, Config{Store: mem, Splitter: &fakeSplitter{perDoc: 2}})

	ids, err := p.Execute(context.Background(), "acme:vector", testFiles(3), map[string]string{"tenant": "acme"})
	require.NoError(t, err)
	assert.Len(t, ids, 6)
	assert.Len(t, mem.Nodes("acme:vector"), 6)
}

func TestExecute_PerFileFailureIsolation(t *testing.T) {
	// File 1 of 3 fails at each stage in turn; the other two files must
	// be stored and the call must not raise.
	badPath := "docs/file-1.pdf"

	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "file service",
			cfg:  Config{Files: &fakeFiles{missing: map[string]bool{badPath: true}}},
		},
		{
			name: "file loading",
			cfg:  Config{Parser: &fakeParser{failPath: badPath}},
		},
		{
			name: "node parsing",
			cfg:  Config{Splitter: &fakeSplitter{failText: badPath}},
		},
		{
			name: "node ingestion",
			cfg:  Config{Transforms: []Transform{&failingTransform{failText: badPath}}},
		},
		{
			name: "store addition",
			cfg:  Config{Store: &failingHandleStore{Store: store.NewMemory(), failFileID: "file-1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			if tt.cfg.Store == nil {
				tt.cfg.Store = mem
			}
			p := newTestPipeline(t, tt.cfg)

			ids, err := p.Execute(context.Background(), "acme:vector", testFiles(3), nil)
			require.NoError(t, err)
			assert.Len(t, ids, 2, "only the two good files should produce nodes")
			for _, id := range ids {
				assert.NotContains(t, id, "file-1#")
			}
		})
	}
}

func TestExecute_StoreResolutionIsRequestFatal(t *testing.T) {
	p := newTestPipeline(t, Config{Store: failingStore{}})

	ids, err := p.Execute(context.Background(), "acme:vector", testFiles(2), nil)
	require.Error(t, err)
	assert.Nil(t, ids)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageStore, se.Stage)
}

func TestExecute_NodeIDsUniqueAcrossReingestion(t *testing.T) {
	mem := store.NewMemory()
	p := newTestPipeline(t, Config{Store: mem, Splitter: &fakeSplitter{perDoc: 3}})
	files := testFiles(1)

	first, err := p.Execute(context.Background(), "acme:vector", files, nil)
	require.NoError(t, err)
	second, err := p.Execute(context.Background(), "acme:vector", files, nil)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, id := range append(first, second...) {
		assert.False(t, seen[id], "node ID %q produced twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, 6)
}

func TestExecute_FileMetadataWinsOnCollision(t *testing.T) {
	mem := store.NewMemory()
	p := newTestPipeline(t, Config{Store: mem})

	files := []event.FileRef{{
		FileID:   "f1",
		FileType: event.FileTypePDF,
		FilePath: "docs/f1.pdf",
		Metadata: map[string]string{"source": "file"},
	}}

	_, err := p.Execute(context.Background(), "acme:vector", files, map[string]string{
		"source": "request",
		"tenant": "acme",
	})
	require.NoError(t, err)

	nodes := mem.Nodes("acme:vector")
	require.Len(t, nodes, 1)
	assert.Equal(t, "file", nodes[0].Metadata["source"])
	assert.Equal(t, "acme", nodes[0].Metadata["tenant"])
}

func TestNew_RejectsDuplicateEmbeddingTransforms(t *testing.T) {
	_, err := New(Config{
		Name:     "bad",
		Type:     TypeVector,
		Files:    &fakeFiles{},
		Parser:   &fakeParser{},
		Splitter: &fakeSplitter{},
		Store:    store.NewMemory(),
		Transforms: []Transform{
			&EmbeddingTransform{},
			&namedEmbedding{},
		},
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

// namedEmbedding is a second embedding transform under a different name,
// so de-duplication alone cannot remove it.
type namedEmbedding struct{}

func (namedEmbedding) Name() string        { return "embedding-2" }
func (namedEmbedding) embeddingTransform() {}
func (namedEmbedding) Apply(_ context.Context, nodes []node.Node) ([]node.Node, error) {
	return nodes, nil
}

func TestNew_DeduplicatesTransformsByName(t *testing.T) {
	p := newTestPipeline(t, Config{
		Transforms: []Transform{
			NewAnnotateTransform("strategy", "s1"),
			NewAnnotateTransform("strategy", "s1"),
		},
	})
	assert.Len(t, p.transforms, 1)
}
