package types

// UnitType is the pricing model of a metering unit.
type UnitType string

const (
	UnitTypeFixed       UnitType = "fixed"
	UnitTypeUsage       UnitType = "usage"
	UnitTypeTiered      UnitType = "tiered"
	UnitTypeTieredUsage UnitType = "tiered_usage"
)

// RecurringInterval is the billing cadence of a metering unit.
type RecurringInterval string

const (
	IntervalMonth RecurringInterval = "month"
	IntervalYear  RecurringInterval = "year"
)

// AggregateUsage selects how raw usage counts inside a window are reduced.
type AggregateUsage string

const (
	AggregateSum AggregateUsage = "sum"
	AggregateMax AggregateUsage = "max"
)

// MeteringUpdateMethod is how a metering count write is applied upstream.
type MeteringUpdateMethod string

const (
	MeteringAdd    MeteringUpdateMethod = "add"
	MeteringSub    MeteringUpdateMethod = "sub"
	MeteringDirect MeteringUpdateMethod = "direct"
)

// ValidMeteringMethod reports whether m is one of the accepted write methods.
func ValidMeteringMethod(m MeteringUpdateMethod) bool {
	return m == MeteringAdd || m == MeteringSub || m == MeteringDirect
}

// Tier is one bracket of a tiered or tiered_usage price table.
// UpTo is the inclusive upper bound of the bracket; Infinite marks the
// unbounded terminal bracket, in which case UpTo is ignored.
type Tier struct {
	UpTo       int64 `json:"up_to"`
	Infinite   bool  `json:"inf"`
	FlatAmount int64 `json:"flat_amount"`
	UnitAmount int64 `json:"unit_amount"`
}

// MeteringUnit is one billable unit within a pricing menu.
type MeteringUnit struct {
	Name              string            `json:"metering_unit_name"`
	DisplayName       string            `json:"display_name"`
	Type              UnitType          `json:"unit_type"`
	Currency          string            `json:"currency"`
	UnitAmount        int64             `json:"unit_amount"`
	RecurringInterval RecurringInterval `json:"recurring_interval"`
	AggregateUsage    AggregateUsage    `json:"aggregate_usage,omitempty"`
	Tiers             []Tier            `json:"tiers,omitempty"`
}

// PricingMenu groups metering units under a named feature menu.
type PricingMenu struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Units       []MeteringUnit `json:"units"`
}

// PricingPlan is a plan definition fetched from the control plane.
type PricingPlan struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Description string        `json:"description,omitempty"`
	Menus       []PricingMenu `json:"pricing_menus"`
}

// HasYearlyUnit reports whether any unit of the plan bills on a yearly
// cadence. A plan containing at least one yearly unit is segmented with
// year-sized steps.
func (p *PricingPlan) HasYearlyUnit() bool {
	for _, menu := range p.Menus {
		for _, unit := range menu.Units {
			if unit.RecurringInterval == IntervalYear {
				return true
			}
		}
	}
	return false
}

// PlanHistoryEdge records a plan taking effect for a tenant at a point
// in time. A blank PlanID means the tenant had no plan from that instant.
type PlanHistoryEdge struct {
	PlanID    string `json:"plan_id"`
	TaxRateID string `json:"tax_rate_id,omitempty"`
	AppliedAt int64  `json:"plan_applied_at"`
}

// Tenant is the control plane's view of a tenant, including its plan
// history and the end of the currently contracted plan period.
type Tenant struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	PlanID               string            `json:"plan_id,omitempty"`
	PlanHistories        []PlanHistoryEdge `json:"plan_histories"`
	CurrentPlanPeriodEnd int64             `json:"current_plan_period_end,omitempty"`
	Attributes           map[string]any    `json:"attributes,omitempty"`
}

// TaxRate is a tax rate definition from the control plane. Rate is a
// percentage (e.g. 10 for 10%).
type TaxRate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Rate        float64 `json:"percentage"`
	Inclusive   bool    `json:"inclusive,omitempty"`
}

// UsageCount is one raw usage data point returned by the metering API.
// Count is deliberately untyped: upstream occasionally reports
// non-numeric values, which aggregation must skip rather than fail on.
type UsageCount struct {
	MeteringUnitName string `json:"metering_unit_name,omitempty"`
	Timestamp        int64  `json:"timestamp,omitempty"`
	Count            any    `json:"count"`
}

// BillingPeriod is one segment of a tenant's plan history, bounded by
// inclusive epoch-second instants. Label renders both bounds in the
// billing timezone.
type BillingPeriod struct {
	Label  string `json:"label"`
	PlanID string `json:"plan_id"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

// MeteringUnitBilling is one line item of a billing report.
type MeteringUnitBilling struct {
	UnitName        string   `json:"metering_unit_name"`
	UnitDisplayName string   `json:"pricing_unit_display_name"`
	UnitType        UnitType `json:"metering_unit_type"`
	MenuDisplayName string   `json:"function_menu_name"`
	Count           int64    `json:"period_count"`
	Currency        string   `json:"currency"`
	Amount          int64    `json:"period_amount"`
}

// CurrencyTotal is the summed amount for one currency across all line
// items of a report.
type CurrencyTotal struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"total_amount"`
}
