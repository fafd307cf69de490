package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"meterboard/internal/types"
)

// PricingClient talks to the control plane's pricing API: plan definitions,
// tax rates, usage counts, and metering count writes. It satisfies the
// billing engine's UsageSource interface.
type PricingClient struct {
	rest restClient
}

// NewPricingClient creates a PricingClient with its own circuit breaker, so
// a pricing-API outage does not trip the auth path.
func NewPricingClient(httpClient *http.Client, cfg ClientConfig) *PricingClient {
	base := NewBaseClient(
		httpClient,
		"platform-pricing",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Meterboard/1.0",
	)
	return NewPricingClientWithBase(base, cfg)
}

// NewPricingClientWithBase creates a PricingClient with a pre-configured
// BaseClient. This is useful for testing.
func NewPricingClientWithBase(base *BaseClient, cfg ClientConfig) *PricingClient {
	return &PricingClient{rest: newRESTClient(base, cfg.BaseURL, cfg.APIKey, cfg.Logger)}
}

// GetPricingPlan fetches a plan definition with all menus, units, and tiers.
func (c *PricingClient) GetPricingPlan(ctx context.Context, planID string) (*types.PricingPlan, error) {
	var plan types.PricingPlan
	path := "/v1/pricing-plans/" + url.PathEscape(planID)
	if err := c.rest.get(ctx, path, nil, &plan, "GetPricingPlan", types.ErrCodeNotFoundPlan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetTaxRates lists all tax rate definitions.
func (c *PricingClient) GetTaxRates(ctx context.Context) ([]types.TaxRate, error) {
	var out struct {
		TaxRates []types.TaxRate `json:"tax_rates"`
	}
	if err := c.rest.get(ctx, "/v1/tax-rates", nil, &out, "GetTaxRates", types.ErrCodeUpstreamPlatform); err != nil {
		return nil, err
	}
	return out.TaxRates, nil
}

// GetMeteringUnitDateCounts fetches the raw per-period counts of one unit
// over an inclusive epoch-second window.
func (c *PricingClient) GetMeteringUnitDateCounts(ctx context.Context, tenantID, unitName string, start, end int64) ([]types.UsageCount, error) {
	params := url.Values{}
	params.Set("start_timestamp", strconv.FormatInt(start, 10))
	params.Set("end_timestamp", strconv.FormatInt(end, 10))

	var out struct {
		Counts []types.UsageCount `json:"counts"`
	}
	path := fmt.Sprintf("/v1/tenants/%s/metering/units/%s/period-counts",
		url.PathEscape(tenantID), url.PathEscape(unitName))
	if err := c.rest.get(ctx, path, params, &out, "GetMeteringUnitDateCounts", types.ErrCodeNotFoundMeterUnit); err != nil {
		return nil, err
	}
	return out.Counts, nil
}

// UpdateMeteringUnitCount writes a count mutation for one unit. A zero
// timestamp targets the control plane's "now" endpoint; any other value
// targets that exact instant.
func (c *PricingClient) UpdateMeteringUnitCount(ctx context.Context, tenantID, unitName string, timestamp int64, method types.MeteringUpdateMethod, count int64) error {
	// The HTTP boundary validates too; this guards non-handler callers.
	if !types.ValidMeteringMethod(method) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidMethod,
			fmt.Sprintf("unknown metering update method %q", method),
			nil,
		)
	}
	if count < 0 {
		return types.NewAppError(
			types.ErrCodeValidationInvalidCount,
			"metering count must not be negative",
			nil,
		)
	}

	segment := "now"
	if timestamp != 0 {
		segment = strconv.FormatInt(timestamp, 10)
	}
	path := fmt.Sprintf("/v1/tenants/%s/metering/units/%s/timestamp/%s",
		url.PathEscape(tenantID), url.PathEscape(unitName), segment)

	body := map[string]any{
		"method": method,
		"count":  count,
	}
	return c.rest.postJSON(ctx, path, body, nil, "UpdateMeteringUnitCount", types.ErrCodeNotFoundMeterUnit)
}
