// Package pagination provides limit/offset parsing for list endpoints.
package pagination

import (
	"fmt"
	"strconv"
)

const (
	// DefaultLimit is the default page size if not specified
	DefaultLimit = 20
	// MaxLimit is the maximum allowed page size
	MaxLimit = 100
)

// Page is a validated limit/offset pair.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Parse reads raw query values. Empty values take the defaults; anything
// non-numeric or out of range is an error.
func Parse(rawLimit, rawOffset string, defaultLimit, maxLimit int) (Page, error) {
	page := Page{Limit: defaultLimit}

	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil {
			return Page{}, fmt.Errorf("limit must be an integer")
		}
		if n < 1 || n > maxLimit {
			return Page{}, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
		page.Limit = n
	}

	if rawOffset != "" {
		n, err := strconv.Atoi(rawOffset)
		if err != nil {
			return Page{}, fmt.Errorf("offset must be an integer")
		}
		if n < 0 {
			return Page{}, fmt.Errorf("offset must be non-negative")
		}
		page.Offset = n
	}

	return page, nil
}

// Window returns the [start, end) bounds of the page over n items.
func (p Page) Window(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
