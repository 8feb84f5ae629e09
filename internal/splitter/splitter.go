// Package splitter divides parsed documents into nodes sized for
// indexing.
package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/workmait/digestd/internal/node"
)

// DefaultChunkSize and DefaultChunkOverlap apply when a strategy does
// not configure its own.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 128
)

// RecursiveCharacter splits document text on recursive character
// boundaries (paragraphs, then lines, then words).
type RecursiveCharacter struct {
	inner textsplitter.RecursiveCharacter
}

// NewRecursiveCharacter builds a character splitter with the given chunk
// geometry. Zero values fall back to the defaults.
func NewRecursiveCharacter(chunkSize, chunkOverlap int) *RecursiveCharacter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &RecursiveCharacter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split chunks each document and assigns every chunk a fresh node ID.
func (s *RecursiveCharacter) Split(docs []node.Document, nextID func() string) ([]node.Node, error) {
	return split(s.inner, docs, nextID, nil)
}

// Markdown splits markdown-structured text, preserving headings and
// table blocks. Table chunks become object nodes so they can be indexed
// separately from prose.
type Markdown struct {
	inner *textsplitter.MarkdownTextSplitter
}

// NewMarkdown builds a markdown splitter with the given chunk geometry.
func NewMarkdown(chunkSize, chunkOverlap int) *Markdown {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Markdown{
		inner: textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

func (s *Markdown) Split(docs []node.Document, nextID func() string) ([]node.Node, error) {
	return split(s.inner, docs, nextID, isTableChunk)
}

// Separate partitions nodes into prose and object (table) nodes.
func (s *Markdown) Separate(nodes []node.Node) (base, object []node.Node) {
	for _, n := range nodes {
		if n.Object {
			object = append(object, n)
		} else {
			base = append(base, n)
		}
	}
	return base, object
}

func split(ts textsplitter.TextSplitter, docs []node.Document, nextID func() string, isObject func(string) bool) ([]node.Node, error) {
	var out []node.Node
	for _, d := range docs {
		chunks, err := ts.SplitText(d.Text)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			n := node.Node{
				ID:       nextID(),
				Text:     chunk,
				Metadata: node.CloneMetadata(d.Metadata),
			}
			if isObject != nil && isObject(chunk) {
				n.Object = true
			}
			out = append(out, n)
		}
	}
	return out, nil
}

// isTableChunk reports whether every non-blank line of the chunk is part
// of a markdown table.
func isTableChunk(chunk string) bool {
	lines := 0
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "|") {
			return false
		}
		lines++
	}
	return lines > 0
}
