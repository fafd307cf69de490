package types

// Role is a single role grant inside a tenant environment.
type Role struct {
	RoleName    string `json:"role_name"`
	DisplayName string `json:"display_name,omitempty"`
}

// TenantEnv is one environment (e.g. production, staging) of a tenant,
// carrying the roles the user holds there.
type TenantEnv struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

// UserTenant is a tenant as it appears inside a resolved UserInfo:
// the tenant identity plus the caller's environments and roles within it.
type UserTenant struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Envs       []TenantEnv    `json:"envs"`
	Attributes map[string]any `json:"user_attribute,omitempty"`
	PlanID     string         `json:"plan_id,omitempty"`
}

// UserInfo is the control plane's view of the authenticated caller.
type UserInfo struct {
	ID      string       `json:"id"`
	Email   string       `json:"email"`
	Tenants []UserTenant `json:"tenants"`
}

// Tenant looks up a tenant by ID in the user's membership list.
func (u *UserInfo) Tenant(tenantID string) (*UserTenant, bool) {
	for i := range u.Tenants {
		if u.Tenants[i].ID == tenantID {
			return &u.Tenants[i], true
		}
	}
	return nil, false
}

// HasAdminRole reports whether the user holds an admin or sadmin role in
// any environment of the given tenant. Billing and metering operations
// require this level of access.
func (u *UserInfo) HasAdminRole(tenantID string) bool {
	tenant, ok := u.Tenant(tenantID)
	if !ok {
		return false
	}
	for _, env := range tenant.Envs {
		for _, role := range env.Roles {
			if role.RoleName == "admin" || role.RoleName == "sadmin" {
				return true
			}
		}
	}
	return false
}

// Credentials is the token bundle issued by the control-plane auth API.
type Credentials struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// TenantUser is a user as listed within a tenant.
type TenantUser struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Email      string         `json:"email"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Envs       []TenantEnv    `json:"envs,omitempty"`
}

// AttributeDefinition describes one attribute in a tenant or user
// attribute schema.
type AttributeDefinition struct {
	AttributeName string `json:"attribute_name"`
	DisplayName   string `json:"display_name"`
	AttributeType string `json:"attribute_type"`
}

// Invitation is a pending invitation of a user into a tenant.
type Invitation struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	InvitationURL string `json:"invitation_url"`
	Expired       bool   `json:"expired"`
	CreatedAt     int64  `json:"created_at,omitempty"`
	ExpiredAt     int64  `json:"expired_at,omitempty"`
}

// DeletedUserLog is one row of the local deletion audit trail, the only
// state this service persists itself.
type DeletedUserLog struct {
	ID        int64  `json:"id"`
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	DeletedAt int64  `json:"delete_at"`
}
