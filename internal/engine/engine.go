// Package engine decides how to satisfy a search: delegate it to upstream
// verbatim, or scan upstream batches and filter, sort, and paginate locally
// under a fixed fetch budget.
package engine

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/oikotie-tools/apartment-radar/internal/metrics"
	"github.com/oikotie-tools/apartment-radar/internal/models"
	"github.com/oikotie-tools/apartment-radar/internal/normalize"
	"github.com/oikotie-tools/apartment-radar/internal/query"
)

// Upstream is the card API surface the engine consumes.
type Upstream interface {
	Count(ctx context.Context, native url.Values) (int, error)
	FetchBatch(ctx context.Context, native url.Values, offset, limit int, sortBy string) ([]models.RawRecord, error)
}

// CountCache answers count probes for a serialized native parameter set.
type CountCache interface {
	Get(ctx context.Context, key string) (int, bool)
	Set(ctx context.Context, key string, count int)
}

// Result is one aggregated page. Exact=false means the fetch cap truncated
// the scan and Total is a lower bound on the true match count.
type Result struct {
	Items []models.Listing
	Total int
	Exact bool
}

// Engine executes query plans against upstream.
type Engine struct {
	upstream  Upstream
	cache     CountCache
	fetchCap  int
	batchSize int
	log       *slog.Logger
}

// New builds an Engine. fetchCap bounds how many upstream records a single
// local aggregation may scan; batchSize is the per-call page size for scans.
func New(upstream Upstream, fetchCap, batchSize int, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if batchSize > fetchCap {
		batchSize = fetchCap
	}
	return &Engine{upstream: upstream, fetchCap: fetchCap, batchSize: batchSize, log: log}
}

// WithCache attaches an optional warm cache for count probes.
func (e *Engine) WithCache(cache CountCache) *Engine {
	e.cache = cache
	return e
}

// Search runs one request end to end.
func (e *Engine) Search(ctx context.Context, q query.Query) (*Result, error) {
	plan := query.BuildPlan(q)

	start := time.Now()
	var result *Result
	var err error
	if plan.Mode == query.Delegated {
		result, err = e.runDelegated(ctx, plan, q)
		metrics.SearchDuration.WithLabelValues("delegated").Observe(time.Since(start).Seconds())
	} else {
		result, err = e.runLocal(ctx, plan, q)
		metrics.SearchDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	}
	return result, err
}

// FetchAll scans the whole catalog scope without user filters, bounded by the
// fetch cap. Used by the refresh trigger and the snapshot dump.
func (e *Engine) FetchAll(ctx context.Context) ([]models.Listing, error) {
	plan := query.BuildPlan(query.Query{})
	listings, _, err := e.scan(ctx, plan, func(models.Listing) bool { return true })
	return listings, err
}

// runDelegated trusts upstream for filtering, ordering, and the page window.
func (e *Engine) runDelegated(ctx context.Context, plan query.Plan, q query.Query) (*Result, error) {
	total, err := e.count(ctx, plan)
	if err != nil {
		return nil, err
	}

	offset := (q.Page.Number - 1) * q.Page.Size
	records, err := e.upstream.FetchBatch(ctx, plan.NativeParams, offset, q.Page.Size, plan.UpstreamSort)
	if err != nil {
		return nil, err
	}

	return &Result{Items: e.normalizeBatch(records), Total: total, Exact: true}, nil
}

// runLocal scans upstream in batch order, applies the client-only predicates,
// then sorts and slices the survivors. The whole filtered range is scanned
// (up to the cap) because a global sort cannot trust any shorter prefix to
// contain the correct page window.
func (e *Engine) runLocal(ctx context.Context, plan query.Plan, q query.Query) (*Result, error) {
	survivors, exact, err := e.scan(ctx, plan, func(l models.Listing) bool {
		return matchesClientOnly(l, q.Filter)
	})
	if err != nil {
		return nil, err
	}

	sortListings(survivors, q.Sort)

	total := len(survivors)
	start := (q.Page.Number - 1) * q.Page.Size
	if start >= total {
		return &Result{Items: []models.Listing{}, Total: total, Exact: exact}, nil
	}
	end := start + q.Page.Size
	if end > total {
		end = total
	}

	return &Result{Items: survivors[start:end], Total: total, Exact: exact}, nil
}

// scan fetches batches sequentially from offset 0 until the budget is spent
// or upstream runs out, keeping records that pass the predicate in upstream
// relative order. A failed batch aborts the scan; partial data is never
// passed off as a result.
func (e *Engine) scan(ctx context.Context, plan query.Plan, keep func(models.Listing) bool) ([]models.Listing, bool, error) {
	upstreamTotal, err := e.count(ctx, plan)
	if err != nil {
		return nil, false, err
	}

	budget := upstreamTotal
	if budget > e.fetchCap {
		budget = e.fetchCap
	}

	survivors := make([]models.Listing, 0, budget)
	fetched := 0
	exhausted := upstreamTotal == 0

	for fetched < budget {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		limit := e.batchSize
		if remaining := budget - fetched; limit > remaining {
			limit = remaining
		}

		records, err := e.upstream.FetchBatch(ctx, plan.NativeParams, fetched, limit, plan.UpstreamSort)
		if err != nil {
			return nil, false, err
		}
		fetched += len(records)

		for _, raw := range records {
			listing, err := normalize.Record(raw)
			if err != nil {
				e.log.Warn("skipping malformed record", slog.Any("err", err))
				continue
			}
			if keep(listing) {
				survivors = append(survivors, listing)
			}
		}

		if len(records) < limit {
			exhausted = true
			break
		}
	}

	// Exact unless the cap cut the scan short of the filtered range.
	exact := exhausted || fetched >= upstreamTotal
	if !exact {
		metrics.FetchCapHits.Inc()
		e.log.Warn("fetch cap hit, reporting lower-bound total",
			slog.Int("fetched", fetched),
			slog.Int("upstream_total", upstreamTotal),
		)
	}

	return survivors, exact, nil
}

func (e *Engine) count(ctx context.Context, plan query.Plan) (int, error) {
	key := plan.NativeParams.Encode()
	if e.cache != nil {
		if count, ok := e.cache.Get(ctx, key); ok {
			return count, nil
		}
	}

	count, err := e.upstream.Count(ctx, plan.NativeParams)
	if err != nil {
		return 0, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, count)
	}
	return count, nil
}

func (e *Engine) normalizeBatch(records []models.RawRecord) []models.Listing {
	items := make([]models.Listing, 0, len(records))
	for _, raw := range records {
		listing, err := normalize.Record(raw)
		if err != nil {
			e.log.Warn("skipping malformed record", slog.Any("err", err))
			continue
		}
		items = append(items, listing)
	}
	return items
}

// matchesClientOnly applies the predicates upstream cannot evaluate. Bounds
// are inclusive; a listing whose price-per-sqm is underivable fails any set
// bound.
func matchesClientOnly(l models.Listing, f query.Filter) bool {
	if f.MinPricePerSqm == nil && f.MaxPricePerSqm == nil {
		return true
	}
	if l.PricePerSqm == nil {
		return false
	}
	value := float64(*l.PricePerSqm)
	if f.MinPricePerSqm != nil && value < *f.MinPricePerSqm {
		return false
	}
	if f.MaxPricePerSqm != nil && value > *f.MaxPricePerSqm {
		return false
	}
	return true
}
