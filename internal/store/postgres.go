package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workmait/digestd/internal/node"
)

// Postgres is the graph store backend. Nodes and the edges linking
// consecutive nodes of a file live in two tables partitioned by a
// namespace column.
type Postgres struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	handles map[string]*pgHandle
}

// NewPostgres connects, pings, and ensures the graph schema exists.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Postgres{pool: pool, handles: make(map[string]*pgHandle)}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() { s.pool.Close() }

func (s *Postgres) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
            namespace  TEXT NOT NULL,
            id         TEXT NOT NULL,
            file_id    TEXT NOT NULL,
            content    TEXT NOT NULL,
            metadata   JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (namespace, id)
        )`,
		`CREATE INDEX IF NOT EXISTS graph_nodes_file_idx ON graph_nodes (namespace, file_id)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
            namespace  TEXT NOT NULL,
            file_id    TEXT NOT NULL,
            source_id  TEXT NOT NULL,
            target_id  TEXT NOT NULL,
            relation   TEXT NOT NULL,
            PRIMARY KEY (namespace, source_id, target_id, relation)
        )`,
		`CREATE INDEX IF NOT EXISTS graph_edges_file_idx ON graph_edges (namespace, file_id)`,
	}
	for _, q := range ddl {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure graph schema: %w", err)
		}
	}
	return nil
}

// GetOrCreate resolves the namespace handle. The schema is shared, so
// creation only registers the memoized handle.
func (s *Postgres) GetOrCreate(_ context.Context, namespace string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[namespace]
	if !ok {
		h = &pgHandle{store: s, namespace: namespace}
		s.handles[namespace] = h
	}
	return h, nil
}

// Move relocates the files' nodes and edges to the target namespace.
func (s *Postgres) Move(ctx context.Context, source, target string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback(ctx)

	const moveNodes = `UPDATE graph_nodes SET namespace = $1 WHERE namespace = $2 AND file_id = ANY($3)`
	if _, err := tx.Exec(ctx, moveNodes, target, source, fileIDs); err != nil {
		return fmt.Errorf("move nodes %s -> %s: %w", source, target, err)
	}
	const moveEdges = `UPDATE graph_edges SET namespace = $1 WHERE namespace = $2 AND file_id = ANY($3)`
	if _, err := tx.Exec(ctx, moveEdges, target, source, fileIDs); err != nil {
		return fmt.Errorf("move edges %s -> %s: %w", source, target, err)
	}

	return tx.Commit(ctx)
}

// Drop removes everything in the namespace.
func (s *Postgres) Drop(ctx context.Context, namespace string) error {
	s.mu.Lock()
	delete(s.handles, namespace)
	s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin drop: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("drop edges for %q: %w", namespace, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("drop nodes for %q: %w", namespace, err)
	}

	return tx.Commit(ctx)
}

type pgHandle struct {
	store     *Postgres
	namespace string
}

// Add inserts the nodes and links consecutive nodes of the same file
// with "next" edges, preserving document order.
func (h *pgHandle) Add(ctx context.Context, nodes []node.Node) ([]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	const insertNode = `INSERT INTO graph_nodes (namespace, id, file_id, content, metadata)
        VALUES ($1, $2, $3, $4, $5)`
	const insertEdge = `INSERT INTO graph_edges (namespace, file_id, source_id, target_id, relation)
        VALUES ($1, $2, $3, $4, 'next')`

	ids := make([]string, 0, len(nodes))
	prevByFile := make(map[string]string)

	for _, n := range nodes {
		meta, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata for node %q: %w", n.ID, err)
		}
		batch.Queue(insertNode, h.namespace, n.ID, n.FileID, n.Text, meta)
		if prev, ok := prevByFile[n.FileID]; ok {
			batch.Queue(insertEdge, h.namespace, n.FileID, prev, n.ID)
		}
		prevByFile[n.FileID] = n.ID
		ids = append(ids, n.ID)
	}

	br := h.store.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("insert graph batch: %w", err)
		}
	}
	return ids, nil
}

// DeleteByFileIDs removes the files' nodes and edges.
func (h *pgHandle) DeleteByFileIDs(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}

	tx, err := h.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	const deleteEdges = `DELETE FROM graph_edges WHERE namespace = $1 AND file_id = ANY($2)`
	if _, err := tx.Exec(ctx, deleteEdges, h.namespace, fileIDs); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	const deleteNodes = `DELETE FROM graph_nodes WHERE namespace = $1 AND file_id = ANY($2)`
	if _, err := tx.Exec(ctx, deleteNodes, h.namespace, fileIDs); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}

	return tx.Commit(ctx)
}
