package http

import (
	"strconv"
	"strings"

	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// queryValues returns every value of a repeated query parameter. Comma
// separated values are split as well, so ?sender=a,b equals ?sender=a&sender=b.
func queryValues(c *fiber.Ctx, key string) []string {
	var values []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, v := range strings.Split(string(raw), ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}

// queryUnix parses an optional unix-seconds query parameter.
func queryUnix(c *fiber.Ctx, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.InvalidInput(key, "must be unix seconds")
	}
	return &v, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
