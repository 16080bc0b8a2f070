// Package paging drains cursor-paginated backends up to a hard cap.
package paging

import (
	"context"
	"fmt"
)

// Page is one round trip worth of items. An empty Next means the backend is exhausted.
type Page[T any] struct {
	Items []T
	Next  string
}

// FetchFunc returns up to limit items starting after cursor ("" = first page).
type FetchFunc[T any] func(ctx context.Context, cursor string, limit int) (Page[T], error)

// Collect keeps fetching pages until the backend stops returning a cursor or
// maxItems items have been gathered, whichever comes first. Reaching the cap
// is a normal exit even if the backend would keep paging forever.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], pageSize, maxItems int) ([]T, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("paging: page size must be positive, got %d", pageSize)
	}
	if maxItems <= 0 {
		return nil, nil
	}

	items := make([]T, 0, min(maxItems, pageSize))
	cursor := ""
	for pageNum := 0; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, cursor, min(pageSize, maxItems-len(items)))
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", pageNum, err)
		}
		items = append(items, page.Items...)

		if len(items) >= maxItems {
			return items[:maxItems], nil
		}
		if page.Next == "" {
			return items, nil
		}
		cursor = page.Next
	}
}
