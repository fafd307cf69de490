package billing

import (
	"context"
	"sort"

	"meterboard/internal/types"
)

// Reporter assembles billing reports: one line item per metering unit in
// declaration order, plus per-currency totals.
type Reporter struct {
	usage *Aggregator
}

// NewReporter returns a Reporter resolving usage through usage.
func NewReporter(usage *Aggregator) *Reporter {
	return &Reporter{usage: usage}
}

// ComputeBilling prices every metering unit of plan for the inclusive
// window [start, end]. Line items follow menu/unit declaration order.
// Currency totals are emitted in first-appearance order; a currency
// declared by any unit appears in the totals even if its sum is zero.
// A failed usage fetch aborts the computation; there are no partial
// reports.
func (r *Reporter) ComputeBilling(ctx context.Context, tenantID string, start, end int64, plan *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error) {
	var units []types.MeteringUnit
	for _, menu := range plan.Menus {
		units = append(units, menu.Units...)
	}

	memo, err := r.usage.Prefetch(ctx, tenantID, start, end, units)
	if err != nil {
		return nil, nil, err
	}

	items := make([]types.MeteringUnitBilling, 0, len(units))
	totalIdx := make(map[string]int)
	var totals []types.CurrencyTotal

	for _, menu := range plan.Menus {
		for _, unit := range menu.Units {
			var count int64
			if unit.Type != types.UnitTypeFixed {
				count = memo[unit.Name]
			}
			amount := Amount(count, unit)

			items = append(items, types.MeteringUnitBilling{
				UnitName:        unit.Name,
				UnitDisplayName: unit.DisplayName,
				UnitType:        unit.Type,
				MenuDisplayName: menu.DisplayName,
				Count:           count,
				Currency:        unit.Currency,
				Amount:          amount,
			})

			idx, ok := totalIdx[unit.Currency]
			if !ok {
				idx = len(totals)
				totalIdx[unit.Currency] = idx
				totals = append(totals, types.CurrencyTotal{Currency: unit.Currency})
			}
			totals[idx].Amount += amount
		}
	}

	return items, totals, nil
}

// ResolveTaxRateID finds the tax-rate ID in force for a billing window:
// among the tenant's edges in ascending time order, the last edge whose
// plan ID matches and whose applied-at is not after windowStart decides.
// An empty result (no such edge, or no tax ID on it) is a valid outcome,
// not an error — callers can then skip fetching the tax-rate list
// entirely.
func ResolveTaxRateID(edges []types.PlanHistoryEdge, planID string, windowStart int64) string {
	sorted := make([]types.PlanHistoryEdge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AppliedAt < sorted[j].AppliedAt })

	var taxRateID string
	for _, e := range sorted {
		if e.PlanID == planID && e.AppliedAt <= windowStart {
			taxRateID = e.TaxRateID
		}
	}
	return taxRateID
}

// FindTaxRate looks up a tax rate by ID. Returns nil when the ID is
// blank or absent from rates.
func FindTaxRate(rates []types.TaxRate, taxRateID string) *types.TaxRate {
	if taxRateID == "" {
		return nil
	}
	for i := range rates {
		if rates[i].ID == taxRateID {
			return &rates[i]
		}
	}
	return nil
}

// ResolveTaxRate selects the tax rate applicable to a billing window.
// A nil result is a valid outcome, not an error.
func ResolveTaxRate(edges []types.PlanHistoryEdge, planID string, windowStart int64, rates []types.TaxRate) *types.TaxRate {
	return FindTaxRate(rates, ResolveTaxRateID(edges, planID, windowStart))
}
