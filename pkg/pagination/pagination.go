// Package pagination extracts page/pageSize windows from requests and wraps
// list responses with totals.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds the pagination window of a list request.
type Params struct {
	Page     int
	PageSize int
}

// FromContext reads page/pageSize query parameters, falling back to
// limit/offset naming for callers that use it.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	return Params{Page: page, PageSize: size}
}

// Limit returns the SQL LIMIT value for the window.
func (p Params) Limit() int { return p.PageSize }

// Offset returns the SQL OFFSET value for the window.
func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

// HasMore reports whether pages remain after the current one.
func (p Params) HasMore(total int) bool {
	return p.Offset()+p.PageSize < total
}

// Response wraps a paginated API response.
type Response struct {
	Data     interface{} `json:"data"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	HasMore  bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:     data,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasMore:  p.HasMore(total),
	}
}
