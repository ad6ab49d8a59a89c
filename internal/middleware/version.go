package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// APIVersion is the version served when a request does not pin one.
const APIVersion = "1.0.0"

// VersionMiddleware resolves the requested API version from the
// X-Api-Version header into the request locals and stamps the response
// with the version actually served.
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := c.Get("X-Api-Version", APIVersion)

		// Major.minor aliases the current patch release
		if version == "1.0" {
			version = APIVersion
		}

		c.Locals("apiVersion", version)
		c.Set("X-Docfs-Version", APIVersion)

		return c.Next()
	}
}
