package query_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oikotie-tools/apartment-radar/internal/query"
)

func TestParseDefaults(t *testing.T) {
	q, err := query.Parse(url.Values{}, 50, 500)
	require.NoError(t, err)

	require.Equal(t, query.SortPrice, q.Sort.Key)
	require.False(t, q.Sort.Desc)
	require.Equal(t, 1, q.Page.Number)
	require.Equal(t, 50, q.Page.Size)
	require.Nil(t, q.Filter.MinPrice)
	require.Nil(t, q.Filter.MaxPricePerSqm)
	require.Empty(t, q.Filter.Rooms)
}

func TestParseFull(t *testing.T) {
	values := url.Values{
		"minPrice":       {"100000"},
		"maxPrice":       {"350000"},
		"minSize":        {"30"},
		"maxSize":        {"62.5"},
		"minPricePerSqm": {"2000"},
		"maxPricePerSqm": {"6000"},
		"rooms":          {"1,2,3"},
		"conditions":     {"32,2"},
		"sort":           {"size_desc"},
		"page":           {"3"},
		"pageSize":       {"25"},
	}

	q, err := query.Parse(values, 50, 500)
	require.NoError(t, err)

	require.Equal(t, 100000.0, *q.Filter.MinPrice)
	require.Equal(t, 350000.0, *q.Filter.MaxPrice)
	require.Equal(t, 62.5, *q.Filter.MaxSize)
	require.Equal(t, 2000.0, *q.Filter.MinPricePerSqm)
	require.Equal(t, []int{1, 2, 3}, q.Filter.Rooms)
	require.Equal(t, []int{32, 2}, q.Filter.Conditions)
	require.Equal(t, query.SortSize, q.Sort.Key)
	require.True(t, q.Sort.Desc)
	require.Equal(t, 3, q.Page.Number)
	require.Equal(t, 25, q.Page.Size)
}

func TestParseZeroBoundIsPresent(t *testing.T) {
	q, err := query.Parse(url.Values{"minPricePerSqm": {"0"}}, 50, 500)
	require.NoError(t, err)
	require.NotNil(t, q.Filter.MinPricePerSqm)
	require.Equal(t, 0.0, *q.Filter.MinPricePerSqm)
}

func TestParseSortVariants(t *testing.T) {
	tests := []struct {
		raw  string
		key  query.SortKey
		desc bool
	}{
		{raw: "price", key: query.SortPrice},
		{raw: "price_desc", key: query.SortPrice, desc: true},
		{raw: "published_asc", key: query.SortPublished},
		{raw: "pricePerSqm_desc", key: query.SortPricePerSqm, desc: true},
		{raw: "rooms", key: query.SortRooms},
		{raw: "visitsWeekly_desc", key: query.SortVisitsWeekly, desc: true},
		{raw: "popularity_desc", key: query.SortPopularity, desc: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := query.Parse(url.Values{"sort": {tt.raw}}, 50, 500)
			require.NoError(t, err)
			require.Equal(t, tt.key, q.Sort.Key)
			require.Equal(t, tt.desc, q.Sort.Desc)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{name: "non-numeric bound", values: url.Values{"minPrice": {"cheap"}}},
		{name: "negative bound", values: url.Values{"maxSize": {"-1"}}},
		{name: "bad rooms", values: url.Values{"rooms": {"1,two"}}},
		{name: "bad conditions", values: url.Values{"conditions": {"new"}}},
		{name: "unknown sort", values: url.Values{"sort": {"charm"}}},
		{name: "zero page", values: url.Values{"page": {"0"}}},
		{name: "negative page", values: url.Values{"page": {"-3"}}},
		{name: "bad page size", values: url.Values{"pageSize": {"lots"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := query.Parse(tt.values, 50, 500)
			require.ErrorIs(t, err, query.ErrInvalidQuery)
		})
	}
}

func TestParseClampsPageSize(t *testing.T) {
	q, err := query.Parse(url.Values{"pageSize": {"9000"}}, 50, 500)
	require.NoError(t, err)
	require.Equal(t, 500, q.Page.Size)
}

func TestBuildPlanDelegated(t *testing.T) {
	q, err := query.Parse(url.Values{
		"minPrice": {"100000"},
		"maxPrice": {"300000"},
		"rooms":    {"2,3"},
		"sort":     {"price_desc"},
	}, 50, 500)
	require.NoError(t, err)

	plan := query.BuildPlan(q)
	require.Equal(t, query.Delegated, plan.Mode)
	require.Equal(t, "price_desc", plan.UpstreamSort)

	params := plan.NativeParams
	require.Equal(t, "100", params.Get("cardType"))
	require.NotEmpty(t, params.Get("locations"))
	require.Equal(t, "100000", params.Get("price[min]"))
	require.Equal(t, "300000", params.Get("price[max]"))
	require.Equal(t, []string{"2", "3"}, params["roomCount[]"])
	require.Empty(t, params.Get("size[min]"))
}

func TestBuildPlanConditionsAreNative(t *testing.T) {
	q, err := query.Parse(url.Values{"conditions": {"32,2,4"}}, 50, 500)
	require.NoError(t, err)

	plan := query.BuildPlan(q)
	require.Equal(t, query.Delegated, plan.Mode)
	require.Equal(t, []string{"32", "2", "4"}, plan.NativeParams["conditionType[]"])
}

func TestBuildPlanLocalModes(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{name: "pricePerSqm min bound", values: url.Values{"minPricePerSqm": {"2000"}}},
		{name: "pricePerSqm zero bound", values: url.Values{"minPricePerSqm": {"0"}}},
		{name: "pricePerSqm max bound", values: url.Values{"maxPricePerSqm": {"4500"}}},
		{name: "client-only sort", values: url.Values{"sort": {"pricePerSqm"}}},
		{name: "year sort", values: url.Values{"sort": {"year_desc"}}},
		{name: "ascending popularity has no upstream form", values: url.Values{"sort": {"popularity_asc"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := query.Parse(tt.values, 50, 500)
			require.NoError(t, err)

			plan := query.BuildPlan(q)
			require.Equal(t, query.LocalAggregation, plan.Mode)
			require.Equal(t, query.ScanSort, plan.UpstreamSort)
		})
	}
}

func TestBuildPlanDescendingPopularityIsNative(t *testing.T) {
	q, err := query.Parse(url.Values{"sort": {"popularity_desc"}}, 50, 500)
	require.NoError(t, err)

	plan := query.BuildPlan(q)
	require.Equal(t, query.Delegated, plan.Mode)
	require.Equal(t, "popularity_week_desc", plan.UpstreamSort)
}

func TestBuildPlanEmptyFilterStaysDelegated(t *testing.T) {
	q, err := query.Parse(url.Values{}, 50, 500)
	require.NoError(t, err)

	plan := query.BuildPlan(q)
	require.Equal(t, query.Delegated, plan.Mode)
	require.Equal(t, "price_asc", plan.UpstreamSort)
}

func TestNativeParamsEmitZeroBounds(t *testing.T) {
	q, err := query.Parse(url.Values{"minPrice": {"0"}}, 50, 500)
	require.NoError(t, err)

	plan := query.BuildPlan(q)
	require.Equal(t, "0", plan.NativeParams.Get("price[min]"))
}
