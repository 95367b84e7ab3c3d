package http

import (
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// SetCursorLinkHeader adds an RFC 8288 Link header pointing at the next
// cursor page. It does nothing on the last page.
func SetCursorLinkHeader(c *fiber.Ctx, nextCursor string, limit int) {
	if nextCursor == "" {
		return
	}
	q := url.Values{}
	q.Set("cursor", nextCursor)
	q.Set("limit", fmt.Sprint(limit))
	c.Set("Link", fmt.Sprintf(`<%s?%s>; rel="next"`, c.Path(), q.Encode()))
}
