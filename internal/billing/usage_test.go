package billing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"meterboard/internal/types"
)

// fakeUsageSource returns canned counts per unit name and records how
// often each unit was fetched.
type fakeUsageSource struct {
	mu     sync.Mutex
	counts map[string][]types.UsageCount
	calls  map[string]int
	err    error
}

func newFakeUsageSource(counts map[string][]types.UsageCount) *fakeUsageSource {
	return &fakeUsageSource{counts: counts, calls: make(map[string]int)}
}

func (f *fakeUsageSource) GetMeteringUnitDateCounts(ctx context.Context, tenantID, unitName string, start, end int64) ([]types.UsageCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[unitName]++
	if f.err != nil {
		return nil, f.err
	}
	return f.counts[unitName], nil
}

func rawCounts(values ...any) []types.UsageCount {
	out := make([]types.UsageCount, len(values))
	for i, v := range values {
		out[i] = types.UsageCount{Count: v}
	}
	return out
}

func TestReduce(t *testing.T) {
	mixed := rawCounts(float64(3), float64(7), "x", float64(5))

	if got := Reduce(mixed, types.AggregateSum); got != 15 {
		t.Errorf("sum = %d, want 15 (non-numeric skipped)", got)
	}
	if got := Reduce(mixed, types.AggregateMax); got != 7 {
		t.Errorf("max = %d, want 7", got)
	}
	if got := Reduce(nil, types.AggregateSum); got != 0 {
		t.Errorf("sum of nothing = %d, want 0", got)
	}
	if got := Reduce(rawCounts("a", "b"), types.AggregateMax); got != 0 {
		t.Errorf("max of all non-numeric = %d, want 0", got)
	}
	// Unknown mode reduces as sum.
	if got := Reduce(mixed, "median"); got != 15 {
		t.Errorf("unknown mode = %d, want 15", got)
	}
}

func TestPrefetchMemoizesByUnitName(t *testing.T) {
	source := newFakeUsageSource(map[string][]types.UsageCount{
		"api_calls": rawCounts(float64(10), float64(20)),
		"seats":     rawCounts(float64(4), float64(9)),
	})
	agg := NewAggregator(source, 4)

	units := []types.MeteringUnit{
		{Name: "api_calls", Type: types.UnitTypeUsage, AggregateUsage: types.AggregateSum},
		{Name: "seats", Type: types.UnitTypeTiered, AggregateUsage: types.AggregateMax},
		// Same name again: must not trigger a second fetch.
		{Name: "api_calls", Type: types.UnitTypeTieredUsage, AggregateUsage: types.AggregateMax},
		// Fixed units have no usage and must not be fetched at all.
		{Name: "base_fee", Type: types.UnitTypeFixed},
	}

	memo, err := agg.Prefetch(context.Background(), "tenant-1", 100, 200, units)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	if got := memo["api_calls"]; got != 30 {
		t.Errorf("api_calls = %d, want 30 (sum mode of first declaration wins)", got)
	}
	if got := memo["seats"]; got != 9 {
		t.Errorf("seats = %d, want 9", got)
	}
	if _, ok := memo["base_fee"]; ok {
		t.Error("fixed unit leaked into the memo")
	}

	if source.calls["api_calls"] != 1 {
		t.Errorf("api_calls fetched %d times, want 1", source.calls["api_calls"])
	}
	if source.calls["base_fee"] != 0 {
		t.Errorf("base_fee fetched %d times, want 0", source.calls["base_fee"])
	}
}

func TestPrefetchPropagatesError(t *testing.T) {
	source := newFakeUsageSource(nil)
	source.err = errors.New("platform down")
	agg := NewAggregator(source, 2)

	units := []types.MeteringUnit{{Name: "api_calls", Type: types.UnitTypeUsage}}
	memo, err := agg.Prefetch(context.Background(), "tenant-1", 0, 1, units)
	if err == nil {
		t.Fatal("expected error")
	}
	if memo != nil {
		t.Errorf("got partial memo %v, want nil", memo)
	}
}

func TestPrefetchSequentialFallback(t *testing.T) {
	source := newFakeUsageSource(map[string][]types.UsageCount{
		"a": rawCounts(float64(1)),
		"b": rawCounts(float64(2)),
	})
	agg := NewAggregator(source, 0) // below 1 means sequential

	units := []types.MeteringUnit{
		{Name: "a", Type: types.UnitTypeUsage, AggregateUsage: types.AggregateSum},
		{Name: "b", Type: types.UnitTypeUsage, AggregateUsage: types.AggregateSum},
	}
	memo, err := agg.Prefetch(context.Background(), "t", 0, 1, units)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if memo["a"] != 1 || memo["b"] != 2 {
		t.Errorf("memo = %v, want a=1 b=2", memo)
	}
}
