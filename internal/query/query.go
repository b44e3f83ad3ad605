// Package query parses inbound search parameters and plans how each request
// maps onto the upstream card API.
package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidQuery marks client errors detected before any upstream call.
var ErrInvalidQuery = errors.New("invalid query")

// SortKey enumerates the supported orderings.
type SortKey string

const (
	SortPrice        SortKey = "price"
	SortSize         SortKey = "size"
	SortPublished    SortKey = "published"
	SortPopularity   SortKey = "popularity"
	SortPricePerSqm  SortKey = "pricePerSqm"
	SortRooms        SortKey = "rooms"
	SortYear         SortKey = "year"
	SortVisits       SortKey = "visits"
	SortVisitsWeekly SortKey = "visitsWeekly"
)

// Filter carries the requested predicates. Bounds are pointers so that an
// explicit 0 stays distinguishable from "not set".
type Filter struct {
	MinPrice       *float64
	MaxPrice       *float64
	MinSize        *float64
	MaxSize        *float64
	MinPricePerSqm *float64
	MaxPricePerSqm *float64
	Rooms          []int
	Conditions     []int
}

// Sort is one sort key plus direction.
type Sort struct {
	Key  SortKey
	Desc bool
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Query is a fully parsed search request.
type Query struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

var validSortKeys = map[SortKey]bool{
	SortPrice: true, SortSize: true, SortPublished: true, SortPopularity: true,
	SortPricePerSqm: true, SortRooms: true, SortYear: true, SortVisits: true,
	SortVisitsWeekly: true,
}

// clientOnly keys cannot be expressed to upstream at all.
var clientOnly = map[SortKey]bool{
	SortPricePerSqm: true, SortRooms: true, SortYear: true,
	SortVisits: true, SortVisitsWeekly: true,
}

// Parse validates raw URL parameters into a Query. Page sizes above
// maxPageSize are clamped; everything malformed is an ErrInvalidQuery.
func Parse(values url.Values, defaultPageSize, maxPageSize int) (Query, error) {
	var q Query
	var err error

	bounds := []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &q.Filter.MinPrice},
		{"maxPrice", &q.Filter.MaxPrice},
		{"minSize", &q.Filter.MinSize},
		{"maxSize", &q.Filter.MaxSize},
		{"minPricePerSqm", &q.Filter.MinPricePerSqm},
		{"maxPricePerSqm", &q.Filter.MaxPricePerSqm},
	}
	for _, b := range bounds {
		if *b.dst, err = parseBound(values.Get(b.name), b.name); err != nil {
			return Query{}, err
		}
	}

	if q.Filter.Rooms, err = parseIntList(values.Get("rooms"), "rooms"); err != nil {
		return Query{}, err
	}
	if q.Filter.Conditions, err = parseIntList(values.Get("conditions"), "conditions"); err != nil {
		return Query{}, err
	}

	if q.Sort, err = parseSort(values.Get("sort")); err != nil {
		return Query{}, err
	}

	if q.Page.Number, err = parsePositiveInt(values.Get("page"), "page", 1); err != nil {
		return Query{}, err
	}
	if q.Page.Size, err = parsePositiveInt(values.Get("pageSize"), "pageSize", defaultPageSize); err != nil {
		return Query{}, err
	}
	if q.Page.Size > maxPageSize {
		q.Page.Size = maxPageSize
	}

	return q, nil
}

func parseBound(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be numeric", ErrInvalidQuery, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return nil, fmt.Errorf("%w: %s must be a finite non-negative number", ErrInvalidQuery, name)
	}
	return &value, nil
}

func parseIntList(raw, name string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		value, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be comma-separated integers", ErrInvalidQuery, name)
		}
		out = append(out, value)
	}
	return out, nil
}

func parseSort(raw string) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{Key: SortPrice}, nil
	}

	s := Sort{}
	switch {
	case strings.HasSuffix(raw, "_desc"):
		s.Desc = true
		raw = strings.TrimSuffix(raw, "_desc")
	case strings.HasSuffix(raw, "_asc"):
		raw = strings.TrimSuffix(raw, "_asc")
	}

	s.Key = SortKey(raw)
	if !validSortKeys[s.Key] {
		return Sort{}, fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, raw)
	}
	return s, nil
}

func parsePositiveInt(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("%w: %s must be an integer >= 1", ErrInvalidQuery, name)
	}
	return value, nil
}
