package store

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

// DefaultPageSize is used when a query does not name a page size.
const DefaultPageSize = 50

// MaxPageSize caps a single page.
const MaxPageSize = 1000

// QueryOptions selects one sorted page of the collection.
type QueryOptions struct {
	Sort     string // field name; empty keeps insertion order
	Desc     bool
	Page     int // 1-based
	PageSize int
}

// Page is one page of query results.
type Page struct {
	Records    []pokemon.Record `json:"records"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// Query returns a sorted, paginated copy of the collection. Sorting is
// stable so equal keys keep insertion order.
func (s *Store) Query(opts QueryOptions) Page {
	records := s.Records()

	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.Page < 1 {
		opts.Page = 1
	}

	if opts.Sort != "" {
		sort.SliceStable(records, func(i, j int) bool {
			a, _ := records[i].Get(opts.Sort)
			b, _ := records[j].Get(opts.Sort)
			c := compareValues(a, b)
			if opts.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(records)
	totalPages := (total + opts.PageSize - 1) / opts.PageSize
	start := (opts.Page - 1) * opts.PageSize
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}

	return Page{
		Records:    records[start:end],
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}
}

// compareValues orders two field values: numbers numerically, booleans
// false before true, everything else case-insensitively as text. A missing
// value sorts first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if isNumber(a) && isNumber(b) {
		return compareNumbers(pokemon.ToNumber(a), pokemon.ToNumber(b))
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(strings.ToLower(pokemon.ToText(a)), strings.ToLower(pokemon.ToText(b)))
}

func compareNumbers(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, float64:
		return true
	}
	return false
}
