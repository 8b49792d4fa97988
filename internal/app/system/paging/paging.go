// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of assignment rows shown per page.
const PageSize = 6

// DirectoryLimit is the default number of candidates fetched for the assign modal.
const DirectoryLimit = 100

// TotalPages returns ceil(count/pageSize). It is 0 when count is 0; callers
// that render an empty-state page treat that as one page themselves.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Window returns the 1-based page of rows. Out-of-range pages (including
// page < 1 and pages past the end) yield an empty slice, never an error.
// The result shares memory with rows.
func Window[T any](rows []T, pageSize, page int) []T {
	if pageSize <= 0 || page < 1 {
		return rows[:0:0]
	}
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return rows[:0:0]
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end:end]
}

// Clamp pulls page into [1, max(totalPages, 1)].
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// ParsePage extracts the 1-based "page" query parameter.
// Returns 1 if not present or invalid.
func ParsePage(r *http.Request) int {
	return parsePositive(r, "page", 1)
}

// ParseSize extracts the "size" query parameter, falling back to def.
func ParseSize(r *http.Request, def int) int {
	return parsePositive(r, "size", def)
}

// ParseLimit extracts the "limit" query parameter used by directory
// listings, falling back to def.
func ParseLimit(r *http.Request, def int) int {
	return parsePositive(r, "limit", def)
}

func parsePositive(r *http.Request, key string, def int) int {
	s := query.Get(r, key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start    int // 1-based index of the first row shown (0 if none)
	End      int // 1-based index of the last row shown (0 if none)
	Total    int // total rows
	Page     int
	Pages    int
	PrevPage int // 0 when there is no previous page
	NextPage int // 0 when there is no next page
}

// Describe computes the "showing Start–End of Total" values for page.
func Describe(count, pageSize, page int) Range {
	pages := TotalPages(count, pageSize)
	r := Range{Total: count, Page: page, Pages: pages}

	if page > 1 && page-1 <= pages {
		r.PrevPage = page - 1
	}
	if page >= 1 && page < pages {
		r.NextPage = page + 1
	}

	if pageSize <= 0 || page < 1 || page > pages {
		return r
	}
	r.Start = (page-1)*pageSize + 1
	r.End = r.Start + pageSize - 1
	if r.End > count {
		r.End = count
	}
	return r
}
