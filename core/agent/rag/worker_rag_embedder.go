package rag

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
)

// DefaultMaxQueryChars bounds the text sent for embedding.
const DefaultMaxQueryChars = 8000

// Embedder normalises query text before handing it to the embedding model.
type Embedder struct {
	client   out.Embedder
	maxChars int
}

func NewEmbedder(client out.Embedder, maxChars int) *Embedder {
	if maxChars <= 0 {
		maxChars = DefaultMaxQueryChars
	}
	return &Embedder{client: client, maxChars: maxChars}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.PrepareText(text))
}

// PrepareText collapses whitespace and truncates on a rune boundary.
func (e *Embedder) PrepareText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= e.maxChars {
		return text
	}
	cut := e.maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
