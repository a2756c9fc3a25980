package resource

import (
	"fmt"
	"net/http"
	"strconv"
)

// Pagination bounds list responses. The client may request a smaller page via
// the limit parameter; requests above MaxPageSize are clamped to the ceiling,
// never honored.
type Pagination struct {
	PageSize    int
	MaxPageSize int
}

// DefaultPagination returns the default pagination policy
func DefaultPagination() Pagination {
	return Pagination{PageSize: 25, MaxPageSize: 100}
}

// Page is the list response envelope
type Page struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// Paginate slices results according to the request's limit and offset
// parameters and builds the navigation links.
func (p Pagination) Paginate(r *http.Request, results []map[string]interface{}) *Page {
	limit := p.PageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if p.MaxPageSize > 0 && limit > p.MaxPageSize {
		limit = p.MaxPageSize
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}

	count := len(results)
	start := offset
	if start > count {
		start = count
	}
	end := start + limit
	if end > count {
		end = count
	}

	page := &Page{
		Count:   count,
		Results: results[start:end],
	}
	if end < count {
		next := pageURL(r, limit, offset+limit)
		page.Next = &next
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		previous := pageURL(r, limit, prev)
		page.Previous = &previous
	}
	return page
}

// pageURL rebuilds the request URL with updated limit and offset parameters
func pageURL(r *http.Request, limit, offset int) string {
	u := *r.URL
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	u.RawQuery = q.Encode()

	if u.Host == "" && r.Host != "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		return fmt.Sprintf("%s://%s%s", scheme, r.Host, u.String())
	}
	return u.String()
}
