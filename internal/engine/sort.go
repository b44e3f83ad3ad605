package engine

import (
	"sort"
	"time"

	"github.com/oikotie-tools/apartment-radar/internal/models"
	"github.com/oikotie-tools/apartment-radar/internal/query"
)

// sortListings orders survivors globally. The sort is stable so records with
// equal keys keep their upstream relative order, and records with no value
// for the key go last regardless of direction.
func sortListings(listings []models.Listing, s query.Sort) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, aok := sortValue(listings[i], s.Key)
		b, bok := sortValue(listings[j], s.Key)

		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		if s.Desc {
			return a > b
		}
		return a < b
	})
}

func sortValue(l models.Listing, key query.SortKey) (float64, bool) {
	switch key {
	case query.SortPrice:
		return deref(l.Price)
	case query.SortSize:
		return deref(l.Size)
	case query.SortPricePerSqm:
		return derefInt(l.PricePerSqm)
	case query.SortRooms:
		return derefInt(l.Rooms)
	case query.SortYear:
		return derefInt(l.Year)
	case query.SortVisits:
		return derefInt(l.Visits)
	case query.SortVisitsWeekly, query.SortPopularity:
		return derefInt(l.VisitsWeekly)
	case query.SortPublished:
		return publishedValue(l.Published)
	default:
		return 0, false
	}
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func derefInt(v *int) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return float64(*v), true
}

var publishedFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func publishedValue(raw string) (float64, bool) {
	for _, format := range publishedFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return float64(ts.Unix()), true
		}
	}
	return 0, false
}
