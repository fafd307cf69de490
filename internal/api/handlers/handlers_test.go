package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// testLogger discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

// adminUser returns a caller holding the admin role in the given tenant.
func adminUser(tenantID string) *types.UserInfo {
	return &types.UserInfo{
		ID:    "user-admin",
		Email: "admin@example.com",
		Tenants: []types.UserTenant{
			{
				ID:   tenantID,
				Name: "Acme",
				Envs: []types.TenantEnv{
					{ID: 3, Name: "production", Roles: []types.Role{{RoleName: "admin"}}},
				},
			},
		},
	}
}

// memberUser returns a caller who belongs to the tenant without any admin
// role.
func memberUser(tenantID string) *types.UserInfo {
	return &types.UserInfo{
		ID:    "user-member",
		Email: "member@example.com",
		Tenants: []types.UserTenant{
			{
				ID:   tenantID,
				Name: "Acme",
				Envs: []types.TenantEnv{
					{ID: 3, Name: "production", Roles: []types.Role{{RoleName: "user"}}},
				},
			},
		},
	}
}

// withUser injects a resolved identity (and matching access token) into the
// request context the way the auth middleware would.
func withUser(r *http.Request, user *types.UserInfo) *http.Request {
	ctx := types.WithUserInfo(r.Context(), user)
	ctx = types.WithAccessToken(ctx, "test-access-token")
	return r.WithContext(ctx)
}

// decodeError unmarshals the standard error envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.APIErrorResponse {
	t.Helper()
	var resp core.APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return resp
}

// decodeData unmarshals the data envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode data envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("failed to decode data payload: %v", err)
	}
}
