package billing

import (
	"context"
	"sync"

	"meterboard/internal/types"

	"golang.org/x/sync/errgroup"
)

// UsageSource provides raw usage counts for one metering unit over an
// inclusive epoch-second window.
type UsageSource interface {
	GetMeteringUnitDateCounts(ctx context.Context, tenantID, unitName string, start, end int64) ([]types.UsageCount, error)
}

// Aggregator resolves aggregated usage counts for the metering units of
// a plan. Counts are memoized per call keyed by unit name, so two units
// sharing a name never trigger a second fetch; the memo lives only for
// the duration of one Prefetch and is never shared across requests.
type Aggregator struct {
	source      UsageSource
	parallelism int
}

// NewAggregator returns an Aggregator reading from source. parallelism
// bounds concurrent fetches; values below 1 mean sequential.
func NewAggregator(source UsageSource, parallelism int) *Aggregator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Aggregator{source: source, parallelism: parallelism}
}

// Prefetch fetches and reduces counts for every distinct non-fixed unit
// name in units, in parallel. Fixed units have no usage concept and are
// skipped (their count is defined as 0). When a name appears more than
// once, the first declaration's aggregation mode wins. Any fetch error
// aborts the whole prefetch; no partial result is returned.
func (a *Aggregator) Prefetch(ctx context.Context, tenantID string, start, end int64, units []types.MeteringUnit) (map[string]int64, error) {
	memo := make(map[string]int64)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)

	seen := make(map[string]bool, len(units))
	for _, unit := range units {
		if unit.Type == types.UnitTypeFixed || seen[unit.Name] {
			continue
		}
		seen[unit.Name] = true

		unit := unit
		g.Go(func() error {
			counts, err := a.source.GetMeteringUnitDateCounts(ctx, tenantID, unit.Name, start, end)
			if err != nil {
				return err
			}
			n := Reduce(counts, unit.AggregateUsage)
			mu.Lock()
			memo[unit.Name] = n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return memo, nil
}

// Reduce collapses raw counts into a single value. sum adds every
// numeric count; max takes the largest numeric count seen, starting
// from 0. Non-numeric counts are skipped, never treated as an error.
// An unrecognized mode reduces as sum.
func Reduce(counts []types.UsageCount, mode types.AggregateUsage) int64 {
	var sum, max int64
	for _, c := range counts {
		n, ok := numericCount(c.Count)
		if !ok {
			continue
		}
		sum += n
		if n > max {
			max = n
		}
	}
	if mode == types.AggregateMax {
		return max
	}
	return sum
}

// numericCount extracts an integral count from the loosely typed value
// upstream reports. JSON decoding yields float64; the other cases cover
// hand-built test data and future decoder changes.
func numericCount(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}
