package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// TenantRegistrar creates tenants on the control plane.
type TenantRegistrar interface {
	CreateTenant(ctx context.Context, name, backOfficeEmail string, attributes map[string]any) (*types.Tenant, error)
}

// SelfSignUpRequest is the request body for POST /v1/tenants/self_sign_up.
type SelfSignUpRequest struct {
	Name       string         `json:"name" validate:"required"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// TenantsHandler serves tenant self-sign-up and plan display metadata.
type TenantsHandler struct {
	registrar TenantRegistrar
	plans     PlanProvider
	validator *core.Validator
	logger    *slog.Logger
}

// NewTenantsHandler creates a TenantsHandler with the provided dependencies.
func NewTenantsHandler(registrar TenantRegistrar, plans PlanProvider, v *core.Validator, l *slog.Logger) *TenantsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TenantsHandler{
		registrar: registrar,
		plans:     plans,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the tenant endpoints.
func (h *TenantsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tenants/self_sign_up", h.SelfSignUp)
	r.Get("/pricing_plan", h.GetPricingPlan)
}

// SelfSignUp handles POST /v1/tenants/self_sign_up.
//
// Creates a tenant on the control plane with the caller as its back-office
// contact. The control plane attaches the caller as the first admin user.
func (h *TenantsHandler) SelfSignUp(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUserInfo(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return
	}

	var req SelfSignUpRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	tenant, err := h.registrar.CreateTenant(r.Context(), req.Name, user.Email, req.Attributes)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "tenant created via self sign-up",
		"tenant_id", tenant.ID,
		"user_id", user.ID,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: tenant})
}

// GetPricingPlan handles GET /v1/pricing_plan?plan_id=, returning plan
// display metadata for the dashboard.
func (h *TenantsHandler) GetPricingPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := requiredQueryParam(r, "plan_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	plan, err := h.plans.GetPricingPlan(r.Context(), planID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plan})
}
