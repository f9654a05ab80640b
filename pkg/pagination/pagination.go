package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (Page-1)*Limit far from overflowing.
	MaxPage = 1_000_000
)

// Params holds page-based pagination parameters extracted from a request.
// Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// FromContext reads ?page and ?limit. Missing, malformed or non-positive
// values fall back to page 1 and DefaultLimit; page is capped at MaxPage and
// limit at MaxLimit.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip. It is never negative.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page > MaxPage {
		return (MaxPage - 1) * p.Limit
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages rounds up; zero results means zero pages.
func (p Params) TotalPages(total int) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

func (p Params) HasNext(total int) bool {
	return p.Page < p.TotalPages(total)
}
