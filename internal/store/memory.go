package store

import (
	"context"
	"sync"

	"github.com/workmait/digestd/internal/node"
)

// Memory is an in-memory Store for tests and single-process development.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryHandle
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]*memoryHandle)}
}

// GetOrCreate resolves the namespace handle, creating it on first use.
func (m *Memory) GetOrCreate(_ context.Context, namespace string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.namespaces[namespace]
	if !ok {
		h = &memoryHandle{nodes: make(map[string]node.Node)}
		m.namespaces[namespace] = h
	}
	return h, nil
}

// Move relocates the files' nodes between namespaces.
func (m *Memory) Move(ctx context.Context, source, target string, fileIDs []string) error {
	m.mu.RLock()
	src := m.namespaces[source]
	m.mu.RUnlock()
	if src == nil {
		return nil
	}

	dstHandle, err := m.GetOrCreate(ctx, target)
	if err != nil {
		return err
	}
	dst := dstHandle.(*memoryHandle)

	wanted := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		wanted[id] = true
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()

	for id, n := range src.nodes {
		if wanted[n.FileID] {
			dst.nodes[id] = n
			delete(src.nodes, id)
		}
	}
	return nil
}

// Drop destroys the namespace.
func (m *Memory) Drop(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// Nodes returns a snapshot of the namespace's nodes, nil if absent.
// Test helper.
func (m *Memory) Nodes(namespace string) []node.Node {
	m.mu.RLock()
	h := m.namespaces[namespace]
	m.mu.RUnlock()
	if h == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]node.Node, 0, len(h.nodes))
	for _, n := range h.nodes {
		out = append(out, n)
	}
	return out
}

type memoryHandle struct {
	mu    sync.RWMutex
	nodes map[string]node.Node
}

func (h *memoryHandle) Add(_ context.Context, nodes []node.Node) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		h.nodes[n.ID] = n
		ids = append(ids, n.ID)
	}
	return ids, nil
}

func (h *memoryHandle) DeleteByFileIDs(_ context.Context, fileIDs []string) error {
	wanted := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		wanted[id] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, n := range h.nodes {
		if wanted[n.FileID] {
			delete(h.nodes, id)
		}
	}
	return nil
}
