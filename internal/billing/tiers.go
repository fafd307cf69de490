// Package billing implements the usage-based billing engine: tier price
// resolution, usage aggregation, plan-period segmentation, and report
// assembly. All monetary amounts are integral minor units of the unit's
// currency; the engine never converts between currencies.
package billing

import "meterboard/internal/types"

// Amount resolves the charge for a single metering unit given an
// aggregated usage count, according to the unit's pricing model:
//
//	fixed        - flat UnitAmount per period, usage ignored
//	usage        - UnitAmount per counted unit
//	tiered       - the whole count is priced by the single bracket it
//	               falls into: bracket flat amount + count * bracket
//	               unit amount
//	tiered_usage - graduated pricing: the count fills brackets from the
//	               bottom up, each contributing its flat amount plus its
//	               occupied quantity * unit amount
//
// Unknown unit types charge zero.
func Amount(count int64, unit types.MeteringUnit) int64 {
	switch unit.Type {
	case types.UnitTypeFixed:
		return unit.UnitAmount
	case types.UnitTypeUsage:
		return count * unit.UnitAmount
	case types.UnitTypeTiered:
		return tieredAmount(count, unit.Tiers)
	case types.UnitTypeTieredUsage:
		return tieredUsageAmount(count, unit.Tiers)
	default:
		return 0
	}
}

// tieredAmount scans brackets in declared order and prices the entire
// count with the first bracket whose bound admits it. A count beyond
// every finite bound with no unbounded bracket declared falls back to
// the last bracket; historical plan data contains such tier tables and
// they must keep producing the amounts they always have.
func tieredAmount(count int64, tiers []types.Tier) int64 {
	if len(tiers) == 0 {
		return 0
	}
	for _, tier := range tiers {
		if tier.Infinite || count <= tier.UpTo {
			return tier.FlatAmount + count*tier.UnitAmount
		}
	}
	last := tiers[len(tiers)-1]
	return last.FlatAmount + count*last.UnitAmount
}

// tieredUsageAmount fills brackets cumulatively from the bottom up.
// Each bracket contributes its flat amount plus the quantity occupying
// it times its unit amount; iteration stops once the count is exhausted.
func tieredUsageAmount(count int64, tiers []types.Tier) int64 {
	var total int64
	var prevBound int64
	for _, tier := range tiers {
		if count <= prevBound {
			break
		}
		var inTier int64
		if tier.Infinite {
			inTier = count - prevBound
		} else {
			capped := count
			if tier.UpTo < capped {
				capped = tier.UpTo
			}
			inTier = capped - prevBound
		}
		total += tier.FlatAmount + inTier*tier.UnitAmount
		prevBound = tier.UpTo
		if tier.Infinite {
			break
		}
	}
	return total
}
