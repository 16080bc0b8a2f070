package paging

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
)

// Cursor is the keyset position of the last item of a page on a
// (created_at DESC, id DESC) ordering.
type Cursor struct {
	CreatedAt int64  `json:"c"`
	ID        string `json:"i"`
}

// Encode renders the cursor as an opaque token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Encode. An empty token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return &c, nil
}

// NextCursor returns the token for the page after items, or "" when the
// page was short and the backend is exhausted.
func NextCursor[T any](items []T, limit int, key func(T) Cursor) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	return key(items[len(items)-1]).Encode()
}
