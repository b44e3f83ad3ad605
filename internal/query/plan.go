package query

import (
	"net/url"
	"strconv"
)

// Mode is the fetch strategy for one request.
type Mode int

const (
	// Delegated means upstream satisfies filter, sort, and pagination in one
	// page fetch.
	Delegated Mode = iota
	// LocalAggregation means at least one predicate or sort key is
	// client-only, so the engine must scan upstream batches and filter, sort,
	// and paginate locally.
	LocalAggregation
)

// Fixed catalog scope. These are not user-controlled.
const (
	cardTypeApartment = "100"
	locationsHelsinki = `[[64,6,"Helsinki"]]`

	// ScanSort keeps batch order deterministic during local aggregation.
	ScanSort = "published_sort_desc"
)

// Plan is the per-request fetch strategy. Built once, then consumed by the
// aggregation engine.
type Plan struct {
	Mode Mode
	// NativeParams is the exact native-filter parameter set shared by the
	// count probe and every batch fetch; limit, offset, and sortBy are the
	// only additions either makes.
	NativeParams url.Values
	// UpstreamSort is the sortBy value for Delegated fetches.
	UpstreamSort string
}

// BuildPlan decides whether upstream can satisfy the request verbatim.
func BuildPlan(q Query) Plan {
	p := Plan{NativeParams: nativeParams(q.Filter)}

	sortParam, native := upstreamSort(q.Sort)
	if clientOnly[q.Sort.Key] || !native ||
		q.Filter.MinPricePerSqm != nil || q.Filter.MaxPricePerSqm != nil {
		p.Mode = LocalAggregation
		p.UpstreamSort = ScanSort
		return p
	}

	p.Mode = Delegated
	p.UpstreamSort = sortParam
	return p
}

// nativeParams serializes every upstream-expressible filter plus the fixed
// scope constants. Bounds are emitted only when present, so a real 0 passes
// through while an absent bound adds nothing.
func nativeParams(f Filter) url.Values {
	v := url.Values{}
	v.Set("cardType", cardTypeApartment)
	v.Set("locations", locationsHelsinki)

	setBound := func(name string, bound *float64) {
		if bound != nil {
			v.Set(name, strconv.FormatFloat(*bound, 'f', -1, 64))
		}
	}
	setBound("price[min]", f.MinPrice)
	setBound("price[max]", f.MaxPrice)
	setBound("size[min]", f.MinSize)
	setBound("size[max]", f.MaxSize)

	for _, room := range f.Rooms {
		v.Add("roomCount[]", strconv.Itoa(room))
	}
	for _, condition := range f.Conditions {
		v.Add("conditionType[]", strconv.Itoa(condition))
	}

	return v
}

// upstreamSort maps a native sort to its upstream sortBy value. Popularity
// only exists upstream in descending form.
func upstreamSort(s Sort) (string, bool) {
	direction := "asc"
	if s.Desc {
		direction = "desc"
	}

	switch s.Key {
	case SortPrice:
		return "price_" + direction, true
	case SortSize:
		return "size_" + direction, true
	case SortPublished:
		return "published_sort_" + direction, true
	case SortPopularity:
		if s.Desc {
			return "popularity_week_desc", true
		}
		return "", false
	default:
		return "", false
	}
}
