package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// defaultUserRole is the role granted to newly registered tenant users.
const defaultUserRole = "admin"

// defaultEnvID is the environment new role grants target when the request
// does not name one.
const defaultEnvID = 3

// UserDirectory covers the control-plane user management operations the
// users endpoints delegate to.
type UserDirectory interface {
	GetTenantUsers(ctx context.Context, tenantID string) ([]types.TenantUser, error)
	CreateSaasUser(ctx context.Context, email, password string) error
	CreateTenantUser(ctx context.Context, tenantID, email string, attributes map[string]any) (*types.TenantUser, error)
	CreateTenantUserRoles(ctx context.Context, tenantID, userID string, envID int, roleNames []string) error
	DeleteTenantUser(ctx context.Context, tenantID, userID string) error
}

// DeletionLog records removed tenant users in the local audit trail.
type DeletionLog interface {
	Append(ctx context.Context, entry *types.DeletedUserLog) error
	ListByTenant(ctx context.Context, tenantID string) ([]types.DeletedUserLog, error)
}

// RegisterUserRequest is the request body for POST /v1/users.
type RegisterUserRequest struct {
	TenantID   string         `json:"tenant_id" validate:"required"`
	Email      string         `json:"email" validate:"required,email"`
	Password   string         `json:"password" validate:"required,min=8"`
	EnvID      int            `json:"env_id,omitempty"`
	Role       string         `json:"role,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// DeleteUserRequest is the request body for DELETE /v1/users.
type DeleteUserRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// UsersHandler serves tenant user listing, registration, deletion, and the
// local deletion audit log.
type UsersHandler struct {
	directory UserDirectory
	deletions DeletionLog
	validator *core.Validator
	logger    *slog.Logger
}

// NewUsersHandler creates a UsersHandler with the provided dependencies.
func NewUsersHandler(directory UserDirectory, deletions DeletionLog, v *core.Validator, l *slog.Logger) *UsersHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UsersHandler{
		directory: directory,
		deletions: deletions,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the user endpoints.
func (h *UsersHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users", h.Register)
	r.Delete("/users", h.Delete)
	r.Get("/users/deleted", h.ListDeleted)
}

// List handles GET /v1/users?tenant_id=. Any member of the tenant may list
// its users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := requiredQueryParam(r, "tenant_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantMember(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	users, err := h.directory.GetTenantUsers(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: users})
}

// Register handles POST /v1/users.
//
// Registration is a three-step delegation: create the SaaS-level user,
// attach them to the tenant, then grant the default role. A failure in a
// later step after an earlier one succeeded is surfaced as-is; the
// control plane tolerates re-registration of the same email.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
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

	if err := h.directory.CreateSaasUser(r.Context(), req.Email, req.Password); err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := h.directory.CreateTenantUser(r.Context(), req.TenantID, req.Email, req.Attributes)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	envID := req.EnvID
	if envID == 0 {
		envID = defaultEnvID
	}
	role := req.Role
	if role == "" {
		role = defaultUserRole
	}
	if err := h.directory.CreateTenantUserRoles(r.Context(), req.TenantID, user.ID, envID, []string{role}); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "tenant user registered",
		"tenant_id", req.TenantID,
		"user_id", user.ID,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: user})
}

// Delete handles DELETE /v1/users.
//
// Removes the user from the tenant on the control plane, then appends a
// row to the local deletion audit log so the identity survives upstream
// erasure.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteUserRequest
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

	if err := h.directory.DeleteTenantUser(r.Context(), req.TenantID, req.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	entry := &types.DeletedUserLog{
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Email:    req.Email,
	}
	if err := h.deletions.Append(r.Context(), entry); err != nil {
		// The upstream deletion already happened; losing the audit row is
		// worse than returning an error the client may retry on.
		h.logger.ErrorContext(r.Context(), "failed to record user deletion",
			"tenant_id", req.TenantID,
			"user_id", req.UserID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"message": "user deleted"}})
}

// ListDeleted handles GET /v1/users/deleted?tenant_id=, reading the local
// audit trail.
func (h *UsersHandler) ListDeleted(w http.ResponseWriter, r *http.Request) {
	tenantID, err := requiredQueryParam(r, "tenant_id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := requireTenantAdmin(r, tenantID); err != nil {
		core.Error(w, r, err)
		return
	}

	logs, err := h.deletions.ListByTenant(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: logs})
}
