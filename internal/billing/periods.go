package billing

import (
	"sort"
	"time"

	"meterboard/internal/types"
)

// periodLabelLayout renders period boundaries in the billing zone.
const periodLabelLayout = "2006-01-02 15:04:05"

// Segmenter reconstructs a tenant's plan history into an ordered list of
// calendar-aligned billing periods. All arithmetic happens in a single
// fixed zone so that month and year steps fall on local calendar
// boundaries regardless of where the service runs.
type Segmenter struct {
	loc   *time.Location
	clock types.Clock
}

// NewSegmenter returns a Segmenter operating in the given zone. A nil
// clock defaults to the system clock.
func NewSegmenter(loc *time.Location, clock types.Clock) *Segmenter {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Segmenter{loc: loc, clock: clock}
}

// TerminalInstant derives the end boundary of the tenant's still-open
// period: one second before the contracted current-plan-period end, or
// the present instant when no end is contracted.
func (s *Segmenter) TerminalInstant(currentPlanPeriodEnd int64) time.Time {
	if currentPlanPeriodEnd > 0 {
		return time.Unix(currentPlanPeriodEnd-1, 0).In(s.loc)
	}
	return s.clock.Now().In(s.loc)
}

// Segment turns an unordered set of plan-history edges into billing
// periods, newest-first. cadence maps a plan ID to its recurring
// interval; plans absent from the map periodize monthly.
//
// Each edge's window runs from its applied-at instant to one second
// before the next edge's, or to terminal for the last edge, so the
// emitted periods tile the tenant's lifetime with no gaps or overlaps.
// Edges with a blank plan ID represent "no plan" gaps: they produce no
// periods but still bound the preceding edge's window.
func (s *Segmenter) Segment(edges []types.PlanHistoryEdge, cadence map[string]types.RecurringInterval, terminal time.Time) []types.BillingPeriod {
	sorted := make([]types.PlanHistoryEdge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AppliedAt < sorted[j].AppliedAt })

	var periods []types.BillingPeriod
	for i, edge := range sorted {
		if edge.PlanID == "" {
			continue
		}

		start := time.Unix(edge.AppliedAt, 0).In(s.loc)
		end := terminal.In(s.loc)
		if i < len(sorted)-1 {
			end = time.Unix(sorted[i+1].AppliedAt-1, 0).In(s.loc)
		}

		interval := cadence[edge.PlanID]
		if interval == "" {
			interval = types.IntervalMonth
		}

		periods = append(periods, s.subdivide(edge.PlanID, start, end, interval)...)
	}

	sort.Slice(periods, func(i, j int) bool { return periods[i].Start > periods[j].Start })
	return periods
}

// subdivide splits [windowStart, windowEnd] into consecutive cadence
// steps. Each step ends one second before the next calendar boundary,
// clamped to windowEnd for the final partial step.
func (s *Segmenter) subdivide(planID string, windowStart, windowEnd time.Time, interval types.RecurringInterval) []types.BillingPeriod {
	var out []types.BillingPeriod
	cur := windowStart
	for !cur.After(windowEnd) {
		end := AddStep(cur, interval).Add(-time.Second)
		if end.After(windowEnd) {
			end = windowEnd
		}
		// A clamped step collapsing to zero width is dropped, not emitted.
		if !end.After(cur) {
			break
		}
		out = append(out, types.BillingPeriod{
			Label:  cur.Format(periodLabelLayout) + " - " + end.Format(periodLabelLayout),
			PlanID: planID,
			Start:  cur.Unix(),
			End:    end.Unix(),
		})
		if !end.Before(windowEnd) {
			break
		}
		cur = end.Add(time.Second)
	}
	return out
}
