package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that did not set one.
// Trip data changes with every segment write, so clients must revalidate.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var cc string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			cc = "public, max-age=10"
		case path == "/metrics":
			cc = "no-cache"
		case strings.HasPrefix(path, "/docs"):
			cc = "public, max-age=3600"
		case strings.HasSuffix(path, "/generation"):
			cc = "no-store"
		case strings.HasPrefix(path, "/v1/trips/"):
			cc = "private, max-age=0, must-revalidate"
		}

		if cc != "" {
			c.Set(fiber.HeaderCacheControl, cc)
		}
		return err
	}
}
