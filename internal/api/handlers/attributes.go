package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// AttributeSchemaProvider supplies the user and tenant attribute schemas
// defined on the control plane.
type AttributeSchemaProvider interface {
	GetUserAttributes(ctx context.Context) ([]types.AttributeDefinition, error)
	GetTenantAttributes(ctx context.Context) ([]types.AttributeDefinition, error)
}

// TenantAttributeValue is one tenant attribute definition paired with the
// tenant's current value, if any.
type TenantAttributeValue struct {
	types.AttributeDefinition
	Value any `json:"value,omitempty"`
}

// AttributesHandler serves the attribute schema endpoints.
type AttributesHandler struct {
	schema  AttributeSchemaProvider
	tenants TenantProvider
	logger  *slog.Logger
}

// NewAttributesHandler creates an AttributesHandler with the provided
// dependencies.
func NewAttributesHandler(schema AttributeSchemaProvider, tenants TenantProvider, l *slog.Logger) *AttributesHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AttributesHandler{
		schema:  schema,
		tenants: tenants,
		logger:  l,
	}
}

// RegisterRoutes mounts the attribute endpoints.
func (h *AttributesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/user_attributes", h.ListUserAttributes)
	r.Get("/tenant_attributes_list", h.ListTenantAttributeDefinitions)
	r.Get("/tenant_attributes", h.GetTenantAttributes)
}

// ListUserAttributes handles GET /v1/user_attributes.
func (h *AttributesHandler) ListUserAttributes(w http.ResponseWriter, r *http.Request) {
	defs, err := h.schema.GetUserAttributes(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: defs})
}

// ListTenantAttributeDefinitions handles GET /v1/tenant_attributes_list.
func (h *AttributesHandler) ListTenantAttributeDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.schema.GetTenantAttributes(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: defs})
}

// GetTenantAttributes handles GET /v1/tenant_attributes?tenant_id=,
// merging the schema with the tenant's stored values.
func (h *AttributesHandler) GetTenantAttributes(w http.ResponseWriter, r *http.Request) {
	tenantID, err := requiredQueryParam(r, "tenant_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantMember(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	defs, err := h.schema.GetTenantAttributes(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	tenant, err := h.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	merged := make([]TenantAttributeValue, 0, len(defs))
	for _, def := range defs {
		merged = append(merged, TenantAttributeValue{
			AttributeDefinition: def,
			Value:               tenant.Attributes[def.AttributeName],
		})
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: merged})
}
