package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"meterboard/internal/types"
)

// restClient holds the shared mechanics of calling a control-plane API:
// authenticated JSON requests through the resilient BaseClient, response
// decoding, and error-body mapping. AuthClient and PricingClient embed it.
type restClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

func newRESTClient(base *BaseClient, baseURL string, apiKey types.SecretString, logger *slog.Logger) restClient {
	if logger == nil {
		logger = slog.Default()
	}
	return restClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// get performs an authenticated GET and decodes the JSON response into out.
// notFound is the error code used when the platform answers 404.
func (r *restClient) get(ctx context.Context, path string, params url.Values, out any, op string, notFound types.ErrorCode) error {
	reqURL := r.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	return r.do(req, r.apiKey.Unmask(), out, op, notFound)
}

// postJSON performs an authenticated POST with a JSON body. out may be nil
// when the response body is irrelevant.
func (r *restClient) postJSON(ctx context.Context, path string, body, out any, op string, notFound types.ErrorCode) error {
	return r.postJSONAs(ctx, path, body, out, op, notFound, r.apiKey.Unmask())
}

// postJSONAs is postJSON with an explicit bearer credential, for the few
// operations that must run under the caller's own token.
func (r *restClient) postJSONAs(ctx context.Context, path string, body, out any, op string, notFound types.ErrorCode, bearer string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected,
				fmt.Sprintf("%s: failed to encode request body", op), err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, bearer, out, op, notFound)
}

// del performs an authenticated DELETE.
func (r *restClient) del(ctx context.Context, path string, op string, notFound types.ErrorCode) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	return r.do(req, r.apiKey.Unmask(), nil, op, notFound)
}

func (r *restClient) do(req *http.Request, bearer string, out any, op string, notFound types.ErrorCode) error {
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := r.base.Do(req)
	if err != nil {
		return wrapTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.handleErrorResponse(resp, op, notFound)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("%s: failed to decode control plane response", op),
			err,
		)
	}
	return nil
}

// platformErrorResponse is the JSON error body the control plane returns.
type platformErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleErrorResponse maps a non-2xx platform response to a types.AppError.
// BaseClient already converted retryable failures (429, 5xx after retries);
// what arrives here is a terminal 4xx.
func (r *restClient) handleErrorResponse(resp *http.Response, op string, notFound types.ErrorCode) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("%s: control plane returned %d with unreadable body", op, resp.StatusCode),
			readErr,
		)
	}

	var platformErr platformErrorResponse
	_ = json.Unmarshal(body, &platformErr)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return types.NewAppError(notFound,
			fmt.Sprintf("%s: %s", op, fallbackMessage(platformErr.Message, "resource not found")), nil)
	case http.StatusConflict:
		return types.NewAppError(types.ErrCodeConflictEmail,
			fmt.Sprintf("%s: %s", op, fallbackMessage(platformErr.Message, "resource already exists")), nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		// Our API key was rejected; this is a deployment problem, not a
		// caller problem, so it must not surface as a 401 to the client.
		return types.NewAppError(types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("%s: control plane rejected credentials (%d)", op, resp.StatusCode), nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("%s: control plane error (%d): %s", op, resp.StatusCode,
				fallbackMessage(platformErr.Message, "no detail")), nil)
	}
}

// wrapTransportError passes AppErrors from BaseClient through untouched and
// wraps anything else as an upstream failure.
func wrapTransportError(op string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamUnavailable,
		fmt.Sprintf("%s: control plane request failed", op),
		err,
	)
}

func fallbackMessage(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
