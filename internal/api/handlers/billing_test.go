package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterboard/internal/types"
)

type fakeTenantProvider struct {
	getTenantFn func(ctx context.Context, tenantID string) (*types.Tenant, error)
}

func (f *fakeTenantProvider) GetTenant(ctx context.Context, tenantID string) (*types.Tenant, error) {
	return f.getTenantFn(ctx, tenantID)
}

type fakePlanProvider struct {
	getPlanFn  func(ctx context.Context, planID string) (*types.PricingPlan, error)
	getRatesFn func(ctx context.Context) ([]types.TaxRate, error)
}

func (f *fakePlanProvider) GetPricingPlan(ctx context.Context, planID string) (*types.PricingPlan, error) {
	return f.getPlanFn(ctx, planID)
}

func (f *fakePlanProvider) GetTaxRates(ctx context.Context) ([]types.TaxRate, error) {
	if f.getRatesFn == nil {
		return nil, nil
	}
	return f.getRatesFn(ctx)
}

type fakeReporter struct {
	computeFn func(ctx context.Context, tenantID string, start, end int64, plan *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error)
}

func (f *fakeReporter) ComputeBilling(ctx context.Context, tenantID string, start, end int64, plan *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error) {
	return f.computeFn(ctx, tenantID, start, end, plan)
}

type fakeSegmenter struct {
	terminalFn func(currentPlanPeriodEnd int64) time.Time
	segmentFn  func(edges []types.PlanHistoryEdge, cadence map[string]types.RecurringInterval, terminal time.Time) []types.BillingPeriod
}

func (f *fakeSegmenter) TerminalInstant(currentPlanPeriodEnd int64) time.Time {
	return f.terminalFn(currentPlanPeriodEnd)
}

func (f *fakeSegmenter) Segment(edges []types.PlanHistoryEdge, cadence map[string]types.RecurringInterval, terminal time.Time) []types.BillingPeriod {
	return f.segmentFn(edges, cadence, terminal)
}

func billingRouter(h *BillingHandler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestBillingHandler_GetDashboard(t *testing.T) {
	tenant := &types.Tenant{
		ID:   "tenant-1",
		Name: "Acme",
		PlanHistories: []types.PlanHistoryEdge{
			{PlanID: "plan-1", TaxRateID: "tax-jp", AppliedAt: 1000},
		},
	}
	plan := &types.PricingPlan{ID: "plan-1", Name: "starter", DisplayName: "Starter", Description: "Entry tier"}
	lineItems := []types.MeteringUnitBilling{
		{UnitName: "api_calls", UnitType: types.UnitTypeUsage, Count: 120, Currency: "JPY", Amount: 2400},
	}
	totals := []types.CurrencyTotal{{Currency: "JPY", Amount: 2400}}
	rates := []types.TaxRate{{ID: "tax-jp", Name: "jp", Rate: 10}}

	newHandler := func(t *testing.T) *BillingHandler {
		t.Helper()
		return NewBillingHandler(
			&fakeTenantProvider{getTenantFn: func(_ context.Context, tenantID string) (*types.Tenant, error) {
				assert.Equal(t, "tenant-1", tenantID)
				return tenant, nil
			}},
			&fakePlanProvider{
				getPlanFn: func(_ context.Context, planID string) (*types.PricingPlan, error) {
					assert.Equal(t, "plan-1", planID)
					return plan, nil
				},
				getRatesFn: func(_ context.Context) ([]types.TaxRate, error) {
					return rates, nil
				},
			},
			&fakeReporter{computeFn: func(_ context.Context, tenantID string, start, end int64, p *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error) {
				assert.Equal(t, "tenant-1", tenantID)
				assert.Equal(t, int64(2000), start)
				assert.Equal(t, int64(3000), end)
				assert.Same(t, plan, p)
				return lineItems, totals, nil
			}},
			&fakeSegmenter{},
			testLogger(),
		)
	}

	t.Run("returns line items, totals and resolved tax rate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=2000&period_end=3000", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp DashboardResponse
		decodeData(t, rec, &resp)
		assert.Equal(t, "plan-1", resp.PlanID)
		assert.Equal(t, "Starter", resp.PlanName)
		assert.Equal(t, "Entry tier", resp.PlanDescription)
		assert.Equal(t, int64(2000), resp.PeriodStart)
		assert.Equal(t, int64(3000), resp.PeriodEnd)
		assert.Equal(t, 1, resp.TotalMeteringUnits)
		assert.Equal(t, lineItems, resp.LineItems)
		assert.Equal(t, totals, resp.CurrencyTotals)
		require.NotNil(t, resp.TaxRate)
		assert.Equal(t, "tax-jp", resp.TaxRate.ID)
	})

	t.Run("omits tax rate when none applies at window start", func(t *testing.T) {
		// The only edge takes effect after the window starts.
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=500&period_end=900", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()

		h := newHandler(t)
		h.reporter = &fakeReporter{computeFn: func(_ context.Context, _ string, _, _ int64, _ *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error) {
			return nil, nil, nil
		}}
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp DashboardResponse
		decodeData(t, rec, &resp)
		assert.Nil(t, resp.TaxRate)
	})

	t.Run("skips the tax-rate fetch when the history names no rate", func(t *testing.T) {
		h := NewBillingHandler(
			&fakeTenantProvider{getTenantFn: func(_ context.Context, _ string) (*types.Tenant, error) {
				return &types.Tenant{
					ID:            "tenant-1",
					PlanHistories: []types.PlanHistoryEdge{{PlanID: "plan-1", AppliedAt: 1000}},
				}, nil
			}},
			&fakePlanProvider{
				getPlanFn: func(_ context.Context, _ string) (*types.PricingPlan, error) {
					return plan, nil
				},
				getRatesFn: func(_ context.Context) ([]types.TaxRate, error) {
					t.Fatal("tax rates must not be fetched without a tax-rate id")
					return nil, nil
				},
			},
			&fakeReporter{computeFn: func(_ context.Context, _ string, _, _ int64, _ *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error) {
				return lineItems, totals, nil
			}},
			&fakeSegmenter{},
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=2000&period_end=3000", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp DashboardResponse
		decodeData(t, rec, &resp)
		assert.Nil(t, resp.TaxRate)
	})

	t.Run("rejects missing parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodeValidationMissingParam), resp.Error.Code)
		assert.Equal(t, "plan_id", resp.Error.Details["param"])
	})

	t.Run("rejects non-numeric period bound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=yesterday&period_end=3000", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodeValidationInvalidParam), resp.Error.Code)
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=3000&period_end=2000", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodeValidationInvalidWindow), resp.Error.Code)
	})

	t.Run("rejects caller outside the tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=2000&period_end=3000", nil)
		req = withUser(req, adminUser("tenant-other"))
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodePermissionTenantMismatch), resp.Error.Code)
	})

	t.Run("rejects member without admin role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=2000&period_end=3000", nil)
		req = withUser(req, memberUser("tenant-1"))
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodePermissionRole), resp.Error.Code)
	})

	t.Run("rejects unauthenticated request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=2000&period_end=3000", nil)
		rec := httptest.NewRecorder()

		billingRouter(newHandler(t)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("propagates computation failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/dashboard?tenant_id=tenant-1&plan_id=plan-1&period_start=2000&period_end=3000", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()

		h := newHandler(t)
		h.reporter = &fakeReporter{computeFn: func(_ context.Context, _ string, _, _ int64, _ *types.PricingPlan) ([]types.MeteringUnitBilling, []types.CurrencyTotal, error) {
			return nil, nil, types.NewAppError(types.ErrCodeUpstreamPlatform, "metering API failed", nil)
		}}
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodeUpstreamPlatform), resp.Error.Code)
	})
}

func TestBillingHandler_GetPlanPeriods(t *testing.T) {
	terminal := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	periods := []types.BillingPeriod{
		{Label: "2025-03-01 00:00:00 - 2025-03-31 23:59:59", PlanID: "plan-1", Start: 1000, End: 1999},
		{Label: "2025-02-01 00:00:00 - 2025-02-28 23:59:59", PlanID: "plan-1", Start: 1, End: 999},
	}

	t.Run("segments the plan history with per-plan cadence", func(t *testing.T) {
		tenant := &types.Tenant{
			ID:                   "tenant-1",
			CurrentPlanPeriodEnd: 5000,
			PlanHistories: []types.PlanHistoryEdge{
				{PlanID: "plan-1", AppliedAt: 1},
				{PlanID: "plan-yearly", AppliedAt: 2000},
			},
		}
		yearly := &types.PricingPlan{
			ID: "plan-yearly",
			Menus: []types.PricingMenu{
				{Units: []types.MeteringUnit{{Name: "seats", RecurringInterval: types.IntervalYear}}},
			},
		}

		var gotCadence map[string]types.RecurringInterval
		h := NewBillingHandler(
			&fakeTenantProvider{getTenantFn: func(_ context.Context, _ string) (*types.Tenant, error) {
				return tenant, nil
			}},
			&fakePlanProvider{getPlanFn: func(_ context.Context, planID string) (*types.PricingPlan, error) {
				if planID == "plan-yearly" {
					return yearly, nil
				}
				return &types.PricingPlan{ID: planID}, nil
			}},
			&fakeReporter{},
			&fakeSegmenter{
				terminalFn: func(end int64) time.Time {
					assert.Equal(t, int64(5000), end)
					return terminal
				},
				segmentFn: func(edges []types.PlanHistoryEdge, cadence map[string]types.RecurringInterval, term time.Time) []types.BillingPeriod {
					assert.Equal(t, tenant.PlanHistories, edges)
					assert.Equal(t, terminal, term)
					gotCadence = cadence
					return periods
				},
			},
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/billing/plan_periods?tenant_id=tenant-1", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got []types.BillingPeriod
		decodeData(t, rec, &got)
		assert.Equal(t, periods, got)
		assert.Equal(t, map[string]types.RecurringInterval{
			"plan-1":      types.IntervalMonth,
			"plan-yearly": types.IntervalYear,
		}, gotCadence)
	})

	t.Run("defaults unknown plans to monthly cadence", func(t *testing.T) {
		tenant := &types.Tenant{
			ID: "tenant-1",
			PlanHistories: []types.PlanHistoryEdge{
				{PlanID: "plan-gone", AppliedAt: 1},
				{PlanID: "", AppliedAt: 500},
			},
		}

		var gotCadence map[string]types.RecurringInterval
		h := NewBillingHandler(
			&fakeTenantProvider{getTenantFn: func(_ context.Context, _ string) (*types.Tenant, error) {
				return tenant, nil
			}},
			&fakePlanProvider{getPlanFn: func(_ context.Context, planID string) (*types.PricingPlan, error) {
				return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "no such plan", nil)
			}},
			&fakeReporter{},
			&fakeSegmenter{
				terminalFn: func(int64) time.Time { return terminal },
				segmentFn: func(_ []types.PlanHistoryEdge, cadence map[string]types.RecurringInterval, _ time.Time) []types.BillingPeriod {
					gotCadence = cadence
					return []types.BillingPeriod{}
				},
			},
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/billing/plan_periods?tenant_id=tenant-1", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]types.RecurringInterval{"plan-gone": types.IntervalMonth}, gotCadence)
	})

	t.Run("propagates other plan lookup failures", func(t *testing.T) {
		tenant := &types.Tenant{
			ID:            "tenant-1",
			PlanHistories: []types.PlanHistoryEdge{{PlanID: "plan-1", AppliedAt: 1}},
		}
		h := NewBillingHandler(
			&fakeTenantProvider{getTenantFn: func(_ context.Context, _ string) (*types.Tenant, error) {
				return tenant, nil
			}},
			&fakePlanProvider{getPlanFn: func(_ context.Context, _ string) (*types.PricingPlan, error) {
				return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "platform down", nil)
			}},
			&fakeReporter{},
			&fakeSegmenter{},
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/billing/plan_periods?tenant_id=tenant-1", nil)
		req = withUser(req, adminUser("tenant-1"))
		rec := httptest.NewRecorder()
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("requires an admin role", func(t *testing.T) {
		h := NewBillingHandler(
			&fakeTenantProvider{getTenantFn: func(_ context.Context, _ string) (*types.Tenant, error) {
				t.Fatal("tenant lookup must not run for non-admin callers")
				return nil, nil
			}},
			&fakePlanProvider{},
			&fakeReporter{},
			&fakeSegmenter{},
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/billing/plan_periods?tenant_id=tenant-1", nil)
		req = withUser(req, memberUser("tenant-1"))
		rec := httptest.NewRecorder()
		billingRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
