package types

import (
	"context"
)

// Context Keys
type contextKey string

const (
	userInfoKey    contextKey = "user_info"
	accessTokenKey contextKey = "access_token"
	requestIDKey   contextKey = "request_id"
)

// WithUserInfo stores the resolved UserInfo in the context.
func WithUserInfo(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userInfoKey, user)
}

// GetUserInfo retrieves the resolved UserInfo from the context.
func GetUserInfo(ctx context.Context) (*UserInfo, bool) {
	user, ok := ctx.Value(userInfoKey).(*UserInfo)
	return user, ok && user != nil
}

// WithAccessToken stores the caller's raw access token in the context.
// Some control-plane operations (invitation creation) must be performed
// with the caller's own credentials rather than the service API key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}

// GetAccessToken retrieves the caller's raw access token from the context.
func GetAccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey).(string)
	return token, ok && token != ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
