package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmait/digestd/internal/node"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n-%d", n)
	}
}

func TestRecursiveCharacter_SplitAssignsIDsAndMetadata(t *testing.T) {
	s := NewRecursiveCharacter(64, 0)
	docs := []node.Document{{
		Text:     strings.Repeat("one paragraph of text. ", 20),
		Metadata: map[string]string{"tenant": "acme"},
	}}

	nodes, err := s.Split(docs, sequentialIDs())
	require.NoError(t, err)
	require.Greater(t, len(nodes), 1, "long text should split into multiple chunks")

	seen := make(map[string]bool)
	for _, n := range nodes {
		assert.False(t, seen[n.ID])
		seen[n.ID] = true
		assert.Equal(t, "acme", n.Metadata["tenant"])
		assert.False(t, n.Object)
	}
}

func TestRecursiveCharacter_MetadataNotShared(t *testing.T) {
	s := NewRecursiveCharacter(64, 0)
	docs := []node.Document{{
		Text:     strings.Repeat("shared metadata check. ", 20),
		Metadata: map[string]string{"k": "v"},
	}}

	nodes, err := s.Split(docs, sequentialIDs())
	require.NoError(t, err)
	require.Greater(t, len(nodes), 1)

	nodes[0].Metadata["k"] = "changed"
	assert.Equal(t, "v", nodes[1].Metadata["k"])
}

func TestMarkdown_TableChunksBecomeObjectNodes(t *testing.T) {
	s := NewMarkdown(256, 0)
	docs := []node.Document{{Text: "# Report\n\nSome prose about totals.\n\n| item | qty |\n| --- | --- |\n| widget | 3 |\n"}}

	nodes, err := s.Split(docs, sequentialIDs())
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	base, object := s.Separate(nodes)
	assert.Equal(t, len(nodes), len(base)+len(object))
	for _, n := range object {
		assert.True(t, n.Object)
	}
	for _, n := range base {
		assert.False(t, n.Object)
	}
}

func TestIsTableChunk(t *testing.T) {
	assert.True(t, isTableChunk("| a | b |\n| --- | --- |\n| 1 | 2 |"))
	assert.False(t, isTableChunk("prose line\n| a | b |"))
	assert.False(t, isTableChunk("   \n\n"))
}
