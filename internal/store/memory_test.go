package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/node"
)

func TestMemory_GetOrCreateMemoizes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h1, err := m.GetOrCreate(ctx, "acme:vector")
	require.NoError(t, err)
	h2, err := m.GetOrCreate(ctx, "acme:vector")
	require.NoError(t, err)

	assert.Same(t, h1, h2)
}

func TestMemory_AddAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h, err := m.GetOrCreate(ctx, "acme:vector")
	require.NoError(t, err)

	ids, err := h.Add(ctx, []node.Node{
		{ID: "f1#a", FileID: "f1", Text: "one"},
		{ID: "f1#b", FileID: "f1", Text: "two"},
		{ID: "f2#a", FileID: "f2", Text: "three"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Len(t, m.Nodes("acme:vector"), 3)

	require.NoError(t, h.DeleteByFileIDs(ctx, []string{"f1"}))
	remaining := m.Nodes("acme:vector")
	require.Len(t, remaining, 1)
	assert.Equal(t, "f2", remaining[0].FileID)

	// Deleting absent files is not an error.
	require.NoError(t, h.DeleteByFileIDs(ctx, []string{"missing"}))
}

func TestMemory_Move(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h, err := m.GetOrCreate(ctx, "src:vector")
	require.NoError(t, err)
	_, err = h.Add(ctx, []node.Node{
		{ID: "f1#a", FileID: "f1"},
		{ID: "f2#a", FileID: "f2"},
	})
	require.NoError(t, err)

	require.NoError(t, m.Move(ctx, "src:vector", "dst:vector", []string{"f1"}))

	assert.Len(t, m.Nodes("src:vector"), 1)
	moved := m.Nodes("dst:vector")
	require.Len(t, moved, 1)
	assert.Equal(t, "f1", moved[0].FileID)

	// Moving from an absent namespace is a no-op.
	require.NoError(t, m.Move(ctx, "nope:vector", "dst:vector", []string{"f1"}))
}

func TestMemory_Drop(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	h, err := m.GetOrCreate(ctx, "acme:vector")
	require.NoError(t, err)
	_, err = h.Add(ctx, []node.Node{{ID: "f1#a", FileID: "f1"}})
	require.NoError(t, err)

	require.NoError(t, m.Drop(ctx, "acme:vector"))
	assert.Nil(t, m.Nodes("acme:vector"))

	// Dropping an absent namespace is not an error.
	require.NoError(t, m.Drop(ctx, "acme:vector"))
}
