package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Limits are clamped so a single listing can never sweep a whole table.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params carries normalized paging values for list endpoints.
type Params struct {
	Page  int
	Limit int
}

// Parse reads page/limit from the query string and normalizes them.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return Normalize(page, limit)
}

// Normalize clamps raw paging values. Services route non-HTTP callers through
// it so every listing obeys the same bounds as the API surface.
func Normalize(page, limit int) Params {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset converts a 1-based page into the row offset the database expects.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// Offset is the row offset for this page.
func (p Params) Offset() int {
	return Offset(p.Page, p.Limit)
}
