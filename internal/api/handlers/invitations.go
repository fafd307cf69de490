package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// InvitationService covers the control-plane invitation operations.
// Invitation creation is performed under the inviting user's own access
// token rather than the service API key.
type InvitationService interface {
	GetInvitations(ctx context.Context, tenantID string) ([]types.Invitation, error)
	CreateInvitation(ctx context.Context, tenantID, email string, envID int, roleNames []string, accessToken string) (*types.Invitation, error)
}

// CreateInvitationRequest is the request body for POST /v1/invitations.
type CreateInvitationRequest struct {
	TenantID  string   `json:"tenant_id" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	EnvID     int      `json:"env_id,omitempty"`
	RoleNames []string `json:"role_names,omitempty"`
}

// InvitationsHandler serves the tenant invitation endpoints.
type InvitationsHandler struct {
	service   InvitationService
	validator *core.Validator
	logger    *slog.Logger
}

// NewInvitationsHandler creates an InvitationsHandler with the provided
// dependencies.
func NewInvitationsHandler(service InvitationService, v *core.Validator, l *slog.Logger) *InvitationsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &InvitationsHandler{
		service:   service,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the invitation endpoints.
func (h *InvitationsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/invitations", h.List)
	r.Post("/invitations", h.Create)
}

// List handles GET /v1/invitations?tenant_id=.
func (h *InvitationsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := requiredQueryParam(r, "tenant_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantMember(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	invitations, err := h.service.GetInvitations(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: invitations})
}

// Create handles POST /v1/invitations.
//
// The invitation is created with the caller's own access token so the
// control plane attributes it to the inviting user.
func (h *InvitationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantAdmin(r, req.TenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	accessToken, ok := types.GetAccessToken(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"caller access token is required to create invitations",
			nil,
		))
		return
	}

	envID := req.EnvID
	if envID == 0 {
		envID = defaultEnvID
	}
	roleNames := req.RoleNames
	if len(roleNames) == 0 {
		roleNames = []string{defaultUserRole}
	}

	invitation, err := h.service.CreateInvitation(r.Context(), req.TenantID, req.Email, envID, roleNames, accessToken)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "invitation created",
		"tenant_id", req.TenantID,
		"invitation_id", invitation.ID,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: invitation})
}
