package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/workmait/digestd/internal/node"
)

// OpenSearchConfig holds OpenSearch connection and index configuration.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string

	// Dimensions is the embedding vector length for knn mappings.
	Dimensions int
}

// OpenSearch is the vector store backend. Each namespace maps to one
// index with a knn_vector mapping.
type OpenSearch struct {
	client *opensearch.Client
	config OpenSearchConfig

	mu      sync.Mutex
	handles map[string]*osHandle
}

// NewOpenSearch creates and pings the OpenSearch backend.
func NewOpenSearch(cfg OpenSearchConfig) (*OpenSearch, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearch{
		client:  client,
		config:  cfg,
		handles: make(map[string]*osHandle),
	}, nil
}

// GetOrCreate resolves the namespace's index, creating it with a knn
// mapping on first use. Creation is memoized per process.
func (s *OpenSearch) GetOrCreate(ctx context.Context, namespace string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[namespace]; ok {
		return h, nil
	}

	index := s.indexName(namespace)
	if err := s.ensureIndex(ctx, index); err != nil {
		return nil, err
	}

	h := &osHandle{store: s, index: index}
	s.handles[namespace] = h
	return h, nil
}

// Move reindexes the files' documents into the target namespace's index
// and removes them from the source.
func (s *OpenSearch) Move(ctx context.Context, source, target string, fileIDs []string) error {
	if _, err := s.GetOrCreate(ctx, target); err != nil {
		return err
	}

	body := map[string]any{
		"source": map[string]any{
			"index": s.indexName(source),
			"query": fileIDQuery(fileIDs),
		},
		"dest": map[string]any{
			"index": s.indexName(target),
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	res, err := s.client.Reindex(bytes.NewReader(raw), s.client.Reindex.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("reindex %s -> %s: %w", source, target, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("reindex %s -> %s: %s", source, target, responseError(res.Body, res.Status()))
	}

	return s.deleteByFileIDs(ctx, s.indexName(source), fileIDs)
}

// Drop deletes the namespace's index. An absent index is not an error.
func (s *OpenSearch) Drop(ctx context.Context, namespace string) error {
	s.mu.Lock()
	delete(s.handles, namespace)
	s.mu.Unlock()

	res, err := s.client.Indices.Delete(
		[]string{s.indexName(namespace)},
		s.client.Indices.Delete.WithContext(ctx),
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("delete index for %q: %w", namespace, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete index for %q: %s", namespace, responseError(res.Body, res.Status()))
	}
	return nil
}

// indexName derives the index for a namespace. Namespace keys use ':'
// which is not legal in index names.
func (s *OpenSearch) indexName(namespace string) string {
	ns := strings.ToLower(strings.ReplaceAll(namespace, ":", "-"))
	return s.config.IndexPrefix + "-" + ns
}

func (s *OpenSearch) ensureIndex(ctx context.Context, index string) error {
	exists, err := s.client.Indices.Exists(
		[]string{index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check index %q: %w", index, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"knn": true,
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"file_id":  map[string]any{"type": "keyword"},
				"text":     map[string]any{"type": "text"},
				"metadata": map[string]any{"type": "object", "dynamic": true},
				"object":   map[string]any{"type": "boolean"},
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": s.config.Dimensions,
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err := s.client.Indices.Create(
		index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %q: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %q: %s", index, responseError(res.Body, res.Status()))
	}
	return nil
}

func (s *OpenSearch) deleteByFileIDs(ctx context.Context, index string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	raw, err := json.Marshal(map[string]any{"query": fileIDQuery(fileIDs)})
	if err != nil {
		return err
	}

	res, err := s.client.DeleteByQuery(
		[]string{index},
		bytes.NewReader(raw),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("delete by file ids in %q: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by file ids in %q: %s", index, responseError(res.Body, res.Status()))
	}
	return nil
}

type osHandle struct {
	store *OpenSearch
	index string
}

type osDocument struct {
	FileID    string            `json:"file_id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Object    bool              `json:"object"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// Add bulk-indexes the nodes into the namespace's index.
func (h *osHandle) Add(ctx context.Context, nodes []node.Node) ([]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: h.store.client,
		Index:  h.index,
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk indexer: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []string
	)
	ids := make([]string, 0, len(nodes))

	for _, n := range nodes {
		doc := osDocument{
			FileID:    n.FileID,
			Text:      n.Text,
			Metadata:  n.Metadata,
			Object:    n.Object,
			Embedding: n.Embedding,
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode node %q: %w", n.ID, err)
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: n.ID,
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", item.DocumentID, err))
				} else {
					failures = append(failures, fmt.Sprintf("%s: %s %s", item.DocumentID, res.Error.Type, res.Error.Reason))
				}
			},
		})
		if err != nil {
			return nil, fmt.Errorf("add node %q to bulk indexer: %w", n.ID, err)
		}
		ids = append(ids, n.ID)
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("flush bulk indexer: %w", err)
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("bulk indexing failed for %d nodes: %s", len(failures), strings.Join(failures, "; "))
	}
	return ids, nil
}

// DeleteByFileIDs removes all documents for the given files.
func (h *osHandle) DeleteByFileIDs(ctx context.Context, fileIDs []string) error {
	return h.store.deleteByFileIDs(ctx, h.index, fileIDs)
}

func fileIDQuery(fileIDs []string) map[string]any {
	return map[string]any{
		"terms": map[string]any{
			"file_id": fileIDs,
		},
	}
}

func responseError(body io.Reader, status string) string {
	raw, _ := io.ReadAll(body)
	return fmt.Sprintf("%s - %s", status, string(raw))
}
