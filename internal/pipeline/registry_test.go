package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/event"
)

type stubPipeline struct {
	name string
	typ  Type
}

func (s *stubPipeline) Name() string { return s.name }
func (s *stubPipeline) Type() Type   { return s.typ }
func (s *stubPipeline) Execute(context.Context, string, []event.FileRef, map[string]string) ([]string, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &stubPipeline{name: "s1", typ: TypeVector}

	require.NoError(t, r.Register(p))

	got, err := r.Get("s1")
	require.NoError(t, err)
	assert.Same(t, Pipeline(p), got)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubPipeline{name: "s1", typ: TypeVector}))

	err := r.Register(&stubPipeline{name: "s1", typ: TypeGraph})
	assert.ErrorIs(t, err, ErrDuplicateStrategy)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ResolveAllAtomic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubPipeline{name: "s1", typ: TypeVector}))
	require.NoError(t, r.Register(&stubPipeline{name: "s2", typ: TypeGraph}))

	pipes, err := r.ResolveAll([]string{"s1", "s2"})
	require.NoError(t, err)
	assert.Len(t, pipes, 2)

	// One unknown name fails the whole resolution, valid names included.
	pipes, err = r.ResolveAll([]string{"s1", "unknown", "s2"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, pipes)
}

func TestNamespace_Composition(t *testing.T) {
	assert.Equal(t, "acme:vector", Namespace("acme", TypeVector))
	assert.Equal(t, "acme:graph", Namespace("acme", TypeGraph))
	assert.NotEqual(t, Namespace("acme", TypeVector), Namespace("acme", TypeGraph))
}
