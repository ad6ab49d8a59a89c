package utils

import (
	"time"

	"github.com/docvault/docfs/internal/types"
	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// CoreErrorResponse translates a core error into the standard error
// body, mapping its kind to an HTTP status.
func CoreErrorResponse(c *fiber.Ctx, err error) error {
	if ce, ok := err.(*types.Error); ok {
		return ErrorResponse(c, ce.Message, ce.HTTPStatus(), string(ce.Kind))
	}
	return ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, string(types.KindInternal))
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// MutationSuccessResponse sends a success response for mutations (POST/PUT/DELETE)
func MutationSuccessResponse(c *fiber.Ctx, path, etag string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "Success",
		"ok":        true,
		"path":      path,
		"etag":      etag,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
}

// NodeResponseStruct defines the schema for node metadata responses
type NodeResponseStruct struct {
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	Path       string            `json:"path"`
	Mimetype   string            `json:"mimetype,omitempty"`
	Size       int64             `json:"size"`
	ETag       string            `json:"etag"`
	Properties map[string]string `json:"properties"`
}
