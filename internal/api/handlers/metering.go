package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// MeteringMutator forwards validated count updates to the control plane.
type MeteringMutator interface {
	UpdateMeteringUnitCount(ctx context.Context, tenantID, unitName string, timestamp int64, method types.MeteringUpdateMethod, count int64) error
}

// UpdateCountRequest is the request body for the metering update endpoints.
type UpdateCountRequest struct {
	Method string `json:"method" validate:"required,oneof=add sub direct"`
	Count  int64  `json:"count" validate:"gte=0"`
}

// MeteringHandler serves the metering count update endpoints.
type MeteringHandler struct {
	mutator   MeteringMutator
	validator *core.Validator
	logger    *slog.Logger
}

// NewMeteringHandler creates a MeteringHandler with the provided dependencies.
func NewMeteringHandler(mutator MeteringMutator, v *core.Validator, l *slog.Logger) *MeteringHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MeteringHandler{
		mutator:   mutator,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the metering endpoints. The timestamp path segment
// is optional; without it the update applies to the current time.
func (h *MeteringHandler) RegisterRoutes(r chi.Router) {
	r.Post("/metering/{tenant_id}/{unit_name}", h.UpdateCount)
	r.Post("/metering/{tenant_id}/{unit_name}/{timestamp}", h.UpdateCount)
}

// UpdateCount handles POST /v1/metering/{tenant_id}/{unit_name}[/{timestamp}].
//
// The body is validated locally before anything is forwarded upstream:
// method must be one of add/sub/direct and count must be non-negative.
// The caller must hold an admin role in the tenant.
func (h *MeteringHandler) UpdateCount(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant_id")
	unitName := chi.URLParam(r, "unit_name")

	var timestamp int64
	if raw := chi.URLParam(r, "timestamp"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidParam,
				"timestamp must be a non-negative Unix epoch value",
				err,
			))
			return
		}
		timestamp = parsed
	}

	var req UpdateCountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantAdmin(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	method := types.MeteringUpdateMethod(req.Method)
	if err := h.mutator.UpdateMeteringUnitCount(r.Context(), tenantID, unitName, timestamp, method, req.Count); err != nil {
		h.logger.ErrorContext(r.Context(), "metering count update failed",
			"tenant_id", tenantID,
			"unit_name", unitName,
			"method", req.Method,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"tenant_id":          tenantID,
		"metering_unit_name": unitName,
		"method":             req.Method,
		"count":              req.Count,
	}})
}
