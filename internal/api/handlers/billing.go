package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/billing"
	"meterboard/internal/core"
	"meterboard/internal/types"
)

// --- Service Interfaces ---

// TenantProvider supplies tenant records, including plan history edges.
type TenantProvider interface {
	GetTenant(ctx context.Context, tenantID string) (*types.Tenant, error)
}

// PlanProvider supplies pricing plan definitions and tax rates.
type PlanProvider interface {
	GetPricingPlan(ctx context.Context, planID string) (*types.PricingPlan, error)
	GetTaxRates(ctx context.Context) ([]types.TaxRate, error)
}

// ReportAssembler computes the billing line items and currency totals for
// one plan over one window.
type ReportAssembler interface {
	ComputeBilling(ctx context.Context, tenantID string, start, end int64, plan *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error)
}

// PeriodSegmenter turns a tenant's plan history into concrete billing
// windows.
type PeriodSegmenter interface {
	TerminalInstant(currentPlanPeriodEnd int64) time.Time
	Segment(edges []types.PlanHistoryEdge, cadence map[string]types.RecurringInterval, terminal time.Time) []types.BillingPeriod
}

// --- Response Models ---

// DashboardResponse is the response body for GET /v1/billing/dashboard.
type DashboardResponse struct {
	PlanID             string                      `json:"plan_id"`
	PlanName           string                      `json:"plan_name"`
	PlanDescription    string                      `json:"plan_description,omitempty"`
	PeriodStart        int64                       `json:"period_start"`
	PeriodEnd          int64                       `json:"period_end"`
	TotalMeteringUnits int                         `json:"total_metering_units"`
	LineItems          []types.MeteringUnitBilling `json:"line_items"`
	CurrencyTotals     []types.CurrencyTotal       `json:"currency_totals"`
	TaxRate            *types.TaxRate              `json:"tax_rate,omitempty"`
}

// --- Billing Handler ---

// BillingHandler serves the billing dashboard and plan-period endpoints.
type BillingHandler struct {
	tenants   TenantProvider
	plans     PlanProvider
	reporter  ReportAssembler
	segmenter PeriodSegmenter
	logger    *slog.Logger
}

// NewBillingHandler creates a BillingHandler with the provided dependencies.
func NewBillingHandler(
	tenants TenantProvider,
	plans PlanProvider,
	reporter ReportAssembler,
	segmenter PeriodSegmenter,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingHandler{
		tenants:   tenants,
		plans:     plans,
		reporter:  reporter,
		segmenter: segmenter,
		logger:    l,
	}
}

// RegisterRoutes mounts the billing endpoints.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/billing/dashboard", h.GetDashboard)
	r.Get("/billing/plan_periods", h.GetPlanPeriods)
}

// GetDashboard handles GET /v1/billing/dashboard.
//
//  1. Validates tenant_id, plan_id, period_start, period_end parameters.
//  2. Requires the caller to hold an admin role in the tenant.
//  3. Computes line items and per-currency totals for the window.
//  4. Resolves the tax rate in force at the window start.
func (h *BillingHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	tenantID, err := requiredQueryParam(r, "tenant_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	planID, err := requiredQueryParam(r, "plan_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	start, err := epochQueryParam(r, "period_start")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	end, err := epochQueryParam(r, "period_end")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if end < start {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidWindow,
			"period_end must not precede period_start",
			nil,
		))
		return
	}

	if _, err := requireTenantAdmin(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	tenant, err := h.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	plan, err := h.plans.GetPricingPlan(r.Context(), planID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	lineItems, totals, err := h.reporter.ComputeBilling(r.Context(), tenantID, start, end, plan)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "billing computation failed",
			"tenant_id", tenantID,
			"plan_id", planID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	// The tax-rate list is only fetched when the matched history edge
	// actually names a rate, so a tax-rates outage cannot fail
	// dashboards that need no tax lookup.
	var taxRate *types.TaxRate
	if taxRateID := billing.ResolveTaxRateID(tenant.PlanHistories, planID, start); taxRateID != "" {
		rates, err := h.plans.GetTaxRates(r.Context())
		if err != nil {
			core.Error(w, r, err)
			return
		}
		taxRate = billing.FindTaxRate(rates, taxRateID)
	}

	resp := DashboardResponse{
		PlanID:             planID,
		PlanName:           plan.DisplayName,
		PlanDescription:    plan.Description,
		PeriodStart:        start,
		PeriodEnd:          end,
		TotalMeteringUnits: len(lineItems),
		LineItems:          lineItems,
		CurrencyTotals:     totals,
		TaxRate:            taxRate,
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// GetPlanPeriods handles GET /v1/billing/plan_periods.
//
// Builds the per-plan cadence map by fetching each distinct plan in the
// tenant's history, then segments the history into concrete windows,
// newest first.
func (h *BillingHandler) GetPlanPeriods(w http.ResponseWriter, r *http.Request) {
	tenantID, err := requiredQueryParam(r, "tenant_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantAdmin(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	tenant, err := h.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	cadence, err := h.planCadence(r.Context(), tenant.PlanHistories)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	terminal := h.segmenter.TerminalInstant(tenant.CurrentPlanPeriodEnd)
	periods := h.segmenter.Segment(tenant.PlanHistories, cadence, terminal)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: periods})
}

// planCadence resolves the billing cadence of every distinct plan in the
// history. Plans the control plane no longer knows default to monthly
// rather than failing the whole listing.
func (h *BillingHandler) planCadence(ctx context.Context, edges []types.PlanHistoryEdge) (map[string]types.RecurringInterval, error) {
	cadence := make(map[string]types.RecurringInterval)
	for _, edge := range edges {
		if edge.PlanID == "" {
			continue
		}
		if _, seen := cadence[edge.PlanID]; seen {
			continue
		}

		plan, err := h.plans.GetPricingPlan(ctx, edge.PlanID)
		if err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundPlan {
				cadence[edge.PlanID] = types.IntervalMonth
				continue
			}
			return nil, err
		}

		if plan.HasYearlyUnit() {
			cadence[edge.PlanID] = types.IntervalYear
		} else {
			cadence[edge.PlanID] = types.IntervalMonth
		}
	}
	return cadence, nil
}
