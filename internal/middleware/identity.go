package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Identity parses the internal user identity headers set by protocol
// gateways (FTP/WebDAV frontends) into the request context. Missing
// headers leave the anonymous identity (uid 0, no groups).
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Get("X-Docfs-Uid"); raw != "" {
			if uid, err := strconv.ParseUint(raw, 10, 32); err == nil {
				c.Locals("uid", uint(uid))
			}
		}
		if raw := c.Get("X-Docfs-Gids"); raw != "" {
			var gids []uint
			for _, part := range strings.Split(raw, ",") {
				if gid, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32); err == nil {
					gids = append(gids, uint(gid))
				}
			}
			c.Locals("gids", gids)
		}
		return c.Next()
	}
}

// UID returns the acting user id stored by Identity.
func UID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("uid").(uint); ok {
		return uid
	}
	return 0
}

// GIDs returns the acting user's group ids stored by Identity.
func GIDs(c *fiber.Ctx) []uint {
	if gids, ok := c.Locals("gids").([]uint); ok {
		return gids
	}
	return nil
}
