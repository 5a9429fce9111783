package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultDayPage = 31
	maxDayPage     = 366
)

// Page is one offset window of a list result.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the window a Page covers.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// End is the exclusive upper bound of the window.
func (p Pagination) End() int {
	return min(p.Offset+p.Limit, p.Total)
}

// parseDayPage reads offset and limit from the query. A limit outside
// 1..366 falls back to a month; the offset is clamped into 0..total.
func parseDayPage(c *fiber.Ctx, total int) Pagination {
	limit := c.QueryInt("limit", defaultDayPage)
	if limit <= 0 || limit > maxDayPage {
		limit = defaultDayPage
	}
	offset := max(c.QueryInt("offset", 0), 0)
	return Pagination{Offset: min(offset, total), Limit: limit, Total: total}
}

// SetLinkHeaders sets the RFC 8288 Link header for p. Query parameters other
// than offset and limit are kept in every link.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	query := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		query.Add(string(k), string(v))
	})
	query.Set("limit", strconv.Itoa(p.Limit))

	link := func(offset int, rel string) string {
		query.Set("offset", strconv.Itoa(offset))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, c.Path(), query.Encode(), rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.End() < p.Total {
		links = append(links, link(p.End(), "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set("Link", strings.Join(links, ", "))
}
