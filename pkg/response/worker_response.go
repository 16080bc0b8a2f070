// Package response provides API response utilities.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the standard API response structure.
type Response struct {
	Success bool  `json:"success"`
	Data    any   `json:"data,omitempty"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta describes a list payload.
type Meta struct {
	Count     int    `json:"count"`
	Limit     int    `json:"limit,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// OK returns a successful response.
func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Response{
		Success: true,
		Data:    data,
	})
}

// OKWithMeta returns a successful response with metadata.
func OKWithMeta(c *fiber.Ctx, data any, meta *Meta) error {
	if meta != nil && meta.RequestID == "" {
		meta.RequestID, _ = c.Locals("request_id").(string)
	}
	return c.JSON(Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}
