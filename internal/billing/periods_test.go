package billing

import (
	"sort"
	"testing"
	"time"

	"meterboard/internal/types"
)

var testZone = time.FixedZone("JST", 9*60*60)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func jst(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, testZone)
}

func TestTerminalInstant(t *testing.T) {
	now := jst(2025, 8, 15, 12, 0, 0)
	s := NewSegmenter(testZone, fakeClock{now})

	periodEnd := jst(2025, 10, 1, 0, 0, 0)
	if got := s.TerminalInstant(periodEnd.Unix()); got.Unix() != periodEnd.Unix()-1 {
		t.Errorf("with contracted end: got %d, want %d", got.Unix(), periodEnd.Unix()-1)
	}
	if got := s.TerminalInstant(0); got.Unix() != now.Unix() {
		t.Errorf("without contracted end: got %d, want now (%d)", got.Unix(), now.Unix())
	}
}

func TestSegmentTiling(t *testing.T) {
	s := NewSegmenter(testZone, fakeClock{jst(2025, 9, 30, 23, 59, 59)})

	edgeA := jst(2025, 4, 1, 0, 0, 0)
	edgeB := jst(2025, 7, 10, 0, 0, 0)
	terminal := jst(2025, 9, 30, 23, 59, 59)

	// Edges deliberately given out of order; Segment must sort them.
	edges := []types.PlanHistoryEdge{
		{PlanID: "plan-b", AppliedAt: edgeB.Unix()},
		{PlanID: "plan-a", AppliedAt: edgeA.Unix()},
	}
	cadence := map[string]types.RecurringInterval{
		"plan-a": types.IntervalMonth,
		"plan-b": types.IntervalMonth,
	}

	periods := s.Segment(edges, cadence, terminal)
	if len(periods) != 7 {
		t.Fatalf("got %d periods, want 7", len(periods))
	}

	// Output is newest-first.
	if periods[0].Start != jst(2025, 9, 10, 0, 0, 0).Unix() {
		t.Errorf("first period start = %d, want %d", periods[0].Start, jst(2025, 9, 10, 0, 0, 0).Unix())
	}

	// Re-sorted ascending, the periods must tile the full lifetime:
	// each period ends exactly one second before the next one starts.
	asc := make([]types.BillingPeriod, len(periods))
	copy(asc, periods)
	sort.Slice(asc, func(i, j int) bool { return asc[i].Start < asc[j].Start })

	if asc[0].Start != edgeA.Unix() {
		t.Errorf("earliest period starts at %d, want %d", asc[0].Start, edgeA.Unix())
	}
	if asc[len(asc)-1].End != terminal.Unix() {
		t.Errorf("latest period ends at %d, want %d", asc[len(asc)-1].End, terminal.Unix())
	}
	for i := 0; i < len(asc)-1; i++ {
		if asc[i].End+1 != asc[i+1].Start {
			t.Errorf("gap or overlap between periods %d and %d: end=%d, next start=%d",
				i, i+1, asc[i].End, asc[i+1].Start)
		}
		if asc[i].End < asc[i].Start {
			t.Errorf("period %d has negative width: [%d, %d]", i, asc[i].Start, asc[i].End)
		}
	}

	// The plan switch lands exactly on the edge.
	if asc[3].End != edgeB.Unix()-1 {
		t.Errorf("plan-a's last period ends at %d, want %d", asc[3].End, edgeB.Unix()-1)
	}
	if asc[4].Start != edgeB.Unix() || asc[4].PlanID != "plan-b" {
		t.Errorf("plan-b starts at %d (%s), want %d (plan-b)", asc[4].Start, asc[4].PlanID, edgeB.Unix())
	}
}

func TestSegmentBlankPlanEdge(t *testing.T) {
	s := NewSegmenter(testZone, fakeClock{jst(2025, 6, 1, 0, 0, 0)})

	edgeA := jst(2025, 1, 1, 0, 0, 0)
	gap := jst(2025, 3, 1, 0, 0, 0)
	edgeB := jst(2025, 5, 1, 0, 0, 0)
	terminal := jst(2025, 5, 31, 23, 59, 59)

	edges := []types.PlanHistoryEdge{
		{PlanID: "plan-a", AppliedAt: edgeA.Unix()},
		{PlanID: "", AppliedAt: gap.Unix()},
		{PlanID: "plan-b", AppliedAt: edgeB.Unix()},
	}

	periods := s.Segment(edges, map[string]types.RecurringInterval{}, terminal)

	// The blank edge emits nothing but still terminates plan-a's window.
	for _, p := range periods {
		if p.PlanID == "" {
			t.Fatalf("blank plan id leaked into output: %+v", p)
		}
		if p.PlanID == "plan-a" && p.End >= gap.Unix() {
			t.Errorf("plan-a period %+v crosses the no-plan gap at %d", p, gap.Unix())
		}
		if p.Start >= gap.Unix() && p.Start < edgeB.Unix() {
			t.Errorf("period emitted inside the no-plan gap: %+v", p)
		}
	}
}

func TestSegmentYearlyCadence(t *testing.T) {
	s := NewSegmenter(testZone, fakeClock{jst(2026, 1, 1, 0, 0, 0)})

	start := jst(2023, 4, 1, 0, 0, 0)
	terminal := jst(2026, 3, 31, 23, 59, 59)
	edges := []types.PlanHistoryEdge{{PlanID: "enterprise", AppliedAt: start.Unix()}}
	cadence := map[string]types.RecurringInterval{"enterprise": types.IntervalYear}

	periods := s.Segment(edges, cadence, terminal)
	if len(periods) != 3 {
		t.Fatalf("got %d periods, want 3 yearly steps", len(periods))
	}
	// Newest-first: the most recent contract year comes first.
	if periods[0].Start != jst(2025, 4, 1, 0, 0, 0).Unix() {
		t.Errorf("newest period starts at %d, want %d", periods[0].Start, jst(2025, 4, 1, 0, 0, 0).Unix())
	}
	if periods[2].Start != start.Unix() {
		t.Errorf("oldest period starts at %d, want %d", periods[2].Start, start.Unix())
	}
}

func TestSegmentSingleEdgeEndsAtNow(t *testing.T) {
	now := jst(2025, 8, 20, 15, 4, 5)
	s := NewSegmenter(testZone, fakeClock{now})

	start := jst(2025, 6, 5, 0, 0, 0)
	edges := []types.PlanHistoryEdge{{PlanID: "starter", AppliedAt: start.Unix()}}

	periods := s.Segment(edges, nil, s.TerminalInstant(0))
	if len(periods) == 0 {
		t.Fatal("no periods emitted")
	}
	if periods[0].End != now.Unix() {
		t.Errorf("open period ends at %d, want now (%d)", periods[0].End, now.Unix())
	}
	if periods[len(periods)-1].Start != start.Unix() {
		t.Errorf("earliest period starts at %d, want %d", periods[len(periods)-1].Start, start.Unix())
	}
}

func TestSegmentNoEdges(t *testing.T) {
	s := NewSegmenter(testZone, fakeClock{jst(2025, 1, 1, 0, 0, 0)})
	if periods := s.Segment(nil, nil, s.TerminalInstant(0)); len(periods) != 0 {
		t.Errorf("got %d periods from empty history, want 0", len(periods))
	}
}

func TestSegmentAdjacentEdgesDropZeroWidthWindow(t *testing.T) {
	s := NewSegmenter(testZone, fakeClock{jst(2025, 9, 1, 0, 0, 0)})

	// The second edge lands one second after the first, collapsing the
	// first edge's window to zero width. Nothing may be emitted for it.
	edgeA := jst(2025, 4, 1, 0, 0, 0)
	edgeB := edgeA.Add(time.Second)
	terminal := jst(2025, 4, 30, 23, 59, 59)
	edges := []types.PlanHistoryEdge{
		{PlanID: "plan-a", AppliedAt: edgeA.Unix()},
		{PlanID: "plan-b", AppliedAt: edgeB.Unix()},
	}

	periods := s.Segment(edges, nil, terminal)
	if len(periods) != 1 {
		t.Fatalf("got %d periods, want 1", len(periods))
	}
	if periods[0].PlanID != "plan-b" {
		t.Errorf("surviving period plan = %q, want %q", periods[0].PlanID, "plan-b")
	}
	if periods[0].Start != edgeB.Unix() || periods[0].End != terminal.Unix() {
		t.Errorf("surviving period [%d, %d], want [%d, %d]",
			periods[0].Start, periods[0].End, edgeB.Unix(), terminal.Unix())
	}
}

func TestSegmentLabelFormat(t *testing.T) {
	s := NewSegmenter(testZone, fakeClock{jst(2025, 5, 1, 0, 0, 0)})

	start := jst(2025, 4, 1, 0, 0, 0)
	terminal := jst(2025, 4, 30, 23, 59, 59)
	edges := []types.PlanHistoryEdge{{PlanID: "basic", AppliedAt: start.Unix()}}

	periods := s.Segment(edges, nil, terminal)
	if len(periods) != 1 {
		t.Fatalf("got %d periods, want 1", len(periods))
	}
	want := "2025-04-01 00:00:00 - 2025-04-30 23:59:59"
	if periods[0].Label != want {
		t.Errorf("label = %q, want %q", periods[0].Label, want)
	}
}
