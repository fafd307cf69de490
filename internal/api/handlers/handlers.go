// Package handlers contains the HTTP handler implementations for the
// Meterboard API. Each handler file defines the service interfaces it
// depends on locally and receives implementations via its constructor,
// which keeps handlers decoupled from concrete platform clients and
// makes test mocking straightforward.
package handlers

import (
	"net/http"
	"strconv"

	"meterboard/internal/types"
)

// requireTenantMember verifies that the authenticated caller belongs to the
// given tenant. Returns the caller's UserInfo on success.
func requireTenantMember(r *http.Request, tenantID string) (*types.UserInfo, error) {
	user, ok := types.GetUserInfo(r.Context())
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		)
	}

	if _, ok := user.Tenant(tenantID); !ok {
		return nil, types.NewAppError(
			types.ErrCodePermissionTenantMismatch,
			"You do not belong to this tenant",
			nil,
		)
	}

	return user, nil
}

// requireTenantAdmin verifies membership and additionally requires an
// admin or sadmin role in some environment of the tenant. Billing and
// metering operations are gated on this.
func requireTenantAdmin(r *http.Request, tenantID string) (*types.UserInfo, error) {
	user, err := requireTenantMember(r, tenantID)
	if err != nil {
		return nil, err
	}

	if !user.HasAdminRole(tenantID) {
		return nil, types.NewAppError(
			types.ErrCodePermissionRole,
			"This operation requires an admin role",
			nil,
		)
	}

	return user, nil
}

// requiredQueryParam returns the named query parameter, or a validation
// error if it is absent or empty.
func requiredQueryParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingParam,
			"required query parameter is missing",
			nil,
			map[string]any{"param": name},
		)
	}
	return v, nil
}

// epochQueryParam parses the named query parameter as a Unix epoch second.
func epochQueryParam(r *http.Request, name string) (int64, error) {
	raw, err := requiredQueryParam(r, name)
	if err != nil {
		return 0, err
	}
	v, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidParam,
			"query parameter must be a Unix epoch timestamp",
			parseErr,
			map[string]any{"param": name},
		)
	}
	return v, nil
}
