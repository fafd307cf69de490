package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"meterboard/internal/types"
)

// ClientConfig holds the configuration for creating a platform API client.
type ClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Logger  *slog.Logger
}

// AuthClient talks to the control plane's auth API: credential exchange,
// user-info resolution, and tenant/user/invitation management. All requests
// ride the resilient BaseClient.
type AuthClient struct {
	rest restClient
}

// NewAuthClient creates an AuthClient with its own circuit breaker.
func NewAuthClient(httpClient *http.Client, cfg ClientConfig) *AuthClient {
	base := NewBaseClient(
		httpClient,
		"platform-auth",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Meterboard/1.0",
	)
	return NewAuthClientWithBase(base, cfg)
}

// NewAuthClientWithBase creates an AuthClient with a pre-configured BaseClient.
// This is useful for testing when you want to control the BaseClient configuration.
func NewAuthClientWithBase(base *BaseClient, cfg ClientConfig) *AuthClient {
	return &AuthClient{rest: newRESTClient(base, cfg.BaseURL, cfg.APIKey, cfg.Logger)}
}

// GetAuthCredentials exchanges a temporary auth code for a credential bundle.
func (c *AuthClient) GetAuthCredentials(ctx context.Context, code string) (*types.Credentials, error) {
	params := url.Values{}
	params.Set("code", code)
	params.Set("auth-flow", "tempCodeAuth")

	var creds types.Credentials
	if err := c.rest.get(ctx, "/v1/credentials", params, &creds, "GetAuthCredentials", types.ErrCodeAuthCodeInvalid); err != nil {
		return nil, err
	}
	return &creds, nil
}

// RefreshCredentials exchanges a refresh token for a fresh credential bundle.
func (c *AuthClient) RefreshCredentials(ctx context.Context, refreshToken string) (*types.Credentials, error) {
	params := url.Values{}
	params.Set("refresh-token", refreshToken)
	params.Set("auth-flow", "refreshTokenAuth")

	var creds types.Credentials
	if err := c.rest.get(ctx, "/v1/credentials", params, &creds, "RefreshCredentials", types.ErrCodeAuthRefreshTokenInvalid); err != nil {
		return nil, err
	}
	return &creds, nil
}

// GetUserInfo resolves an ID token into the caller's identity and tenant
// memberships. Unlike the other operations, a 401/403/404 here means the
// presented token is bad, so it maps to an auth error rather than an
// upstream one.
func (c *AuthClient) GetUserInfo(ctx context.Context, idToken string) (*types.UserInfo, error) {
	params := url.Values{}
	params.Set("token", idToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rest.baseURL+"/v1/userinfo?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.rest.apiKey.Unmask())

	resp, err := c.rest.base.Do(req)
	if err != nil {
		return nil, wrapTransportError("GetUserInfo", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var user types.UserInfo
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamPlatform,
				"GetUserInfo: failed to decode control plane response", err)
		}
		return &user, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid,
			"token could not be verified", nil)
	default:
		return nil, c.rest.handleErrorResponse(resp, "GetUserInfo", types.ErrCodeAuthTokenInvalid)
	}
}

// GetTenant fetches a tenant with its plan history.
func (c *AuthClient) GetTenant(ctx context.Context, tenantID string) (*types.Tenant, error) {
	var tenant types.Tenant
	path := "/v1/tenants/" + url.PathEscape(tenantID)
	if err := c.rest.get(ctx, path, nil, &tenant, "GetTenant", types.ErrCodeNotFoundTenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetTenantUsers lists the users of a tenant.
func (c *AuthClient) GetTenantUsers(ctx context.Context, tenantID string) ([]types.TenantUser, error) {
	var out struct {
		Users []types.TenantUser `json:"users"`
	}
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/users"
	if err := c.rest.get(ctx, path, nil, &out, "GetTenantUsers", types.ErrCodeNotFoundTenant); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// GetTenantUser fetches a single user of a tenant.
func (c *AuthClient) GetTenantUser(ctx context.Context, tenantID, userID string) (*types.TenantUser, error) {
	var user types.TenantUser
	path := fmt.Sprintf("/v1/tenants/%s/users/%s", url.PathEscape(tenantID), url.PathEscape(userID))
	if err := c.rest.get(ctx, path, nil, &user, "GetTenantUser", types.ErrCodeNotFoundUser); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteTenantUser removes a user from a tenant.
func (c *AuthClient) DeleteTenantUser(ctx context.Context, tenantID, userID string) error {
	path := fmt.Sprintf("/v1/tenants/%s/users/%s", url.PathEscape(tenantID), url.PathEscape(userID))
	return c.rest.del(ctx, path, "DeleteTenantUser", types.ErrCodeNotFoundUser)
}

// CreateSaasUser registers a new user account with the SaaS identity store.
func (c *AuthClient) CreateSaasUser(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.rest.postJSON(ctx, "/v1/saas-users", body, nil, "CreateSaasUser", types.ErrCodeNotFoundUser)
}

// CreateTenantUser attaches an existing SaaS user to a tenant, with optional
// attribute values.
func (c *AuthClient) CreateTenantUser(ctx context.Context, tenantID, email string, attributes map[string]any) (*types.TenantUser, error) {
	body := map[string]any{"email": email}
	if len(attributes) > 0 {
		body["attributes"] = attributes
	}
	var user types.TenantUser
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/users"
	if err := c.rest.postJSON(ctx, path, body, &user, "CreateTenantUser", types.ErrCodeNotFoundTenant); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateTenantUserRoles assigns roles to a tenant user within one environment.
func (c *AuthClient) CreateTenantUserRoles(ctx context.Context, tenantID, userID string, envID int, roleNames []string) error {
	body := map[string]any{"role_names": roleNames}
	path := fmt.Sprintf("/v1/tenants/%s/users/%s/envs/%d/roles",
		url.PathEscape(tenantID), url.PathEscape(userID), envID)
	return c.rest.postJSON(ctx, path, body, nil, "CreateTenantUserRoles", types.ErrCodeNotFoundUser)
}

// GetRoles lists the role definitions available in the SaaS.
func (c *AuthClient) GetRoles(ctx context.Context) ([]types.Role, error) {
	var out struct {
		Roles []types.Role `json:"roles"`
	}
	if err := c.rest.get(ctx, "/v1/roles", nil, &out, "GetRoles", types.ErrCodeUpstreamPlatform); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// GetUserAttributes fetches the user attribute schema.
func (c *AuthClient) GetUserAttributes(ctx context.Context) ([]types.AttributeDefinition, error) {
	var out struct {
		UserAttributes []types.AttributeDefinition `json:"user_attributes"`
	}
	if err := c.rest.get(ctx, "/v1/user-attributes", nil, &out, "GetUserAttributes", types.ErrCodeUpstreamPlatform); err != nil {
		return nil, err
	}
	return out.UserAttributes, nil
}

// GetTenantAttributes fetches the tenant attribute schema.
func (c *AuthClient) GetTenantAttributes(ctx context.Context) ([]types.AttributeDefinition, error) {
	var out struct {
		TenantAttributes []types.AttributeDefinition `json:"tenant_attributes"`
	}
	if err := c.rest.get(ctx, "/v1/tenant-attributes", nil, &out, "GetTenantAttributes", types.ErrCodeUpstreamPlatform); err != nil {
		return nil, err
	}
	return out.TenantAttributes, nil
}

// CreateTenant registers a new tenant.
func (c *AuthClient) CreateTenant(ctx context.Context, name, backOfficeEmail string, attributes map[string]any) (*types.Tenant, error) {
	body := map[string]any{
		"name":                    name,
		"back_office_staff_email": backOfficeEmail,
	}
	if len(attributes) > 0 {
		body["attributes"] = attributes
	}
	var tenant types.Tenant
	if err := c.rest.postJSON(ctx, "/v1/tenants", body, &tenant, "CreateTenant", types.ErrCodeNotFoundTenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetInvitations lists pending invitations for a tenant.
func (c *AuthClient) GetInvitations(ctx context.Context, tenantID string) ([]types.Invitation, error) {
	var out struct {
		Invitations []types.Invitation `json:"invitations"`
	}
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/invitations"
	if err := c.rest.get(ctx, path, nil, &out, "GetInvitations", types.ErrCodeNotFoundTenant); err != nil {
		return nil, err
	}
	return out.Invitations, nil
}

// CreateInvitation invites a user into a tenant. The control plane requires
// this call to run under the inviting user's own access token, not the
// service API key.
func (c *AuthClient) CreateInvitation(ctx context.Context, tenantID, email string, envID int, roleNames []string, accessToken string) (*types.Invitation, error) {
	body := map[string]any{
		"email": email,
		"envs": []map[string]any{
			{"id": envID, "role_names": roleNames},
		},
	}
	var inv types.Invitation
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/invitations"
	if err := c.rest.postJSONAs(ctx, path, body, &inv, "CreateInvitation", types.ErrCodeNotFoundTenant, accessToken); err != nil {
		return nil, err
	}
	return &inv, nil
}
