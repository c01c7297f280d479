// Package backend is the HTTP client for the workspace REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/observability/requestid"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

const (
	membershipsPath = "/v1/me:memberships"
	claimTenantPath = "/v1/onboarding:claimTenant"
	workspacesPath  = "/v1/workspaces"

	// tenantProjection flattens one tenant descriptor; older backends send name instead of companyName.
	tenantProjection = `{vertical: vertical, jurisdiction: jurisdiction, companyName: companyName || name}`

	maxBodyBytes = 1 << 20
)

// Config configures the backend client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	Logger     *slog.Logger
	// RetryDelay is the linear backoff step between GET retries (default 200ms).
	RetryDelay time.Duration
}

// Client implements ports.WorkspaceAPI over HTTP+JSON.
type Client struct {
	baseURL    string
	retryLimit int
	retryDelay time.Duration
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.WorkspaceAPI = (*Client)(nil)

// NewClient builds a backend client. Callers should pass a sanitized config.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		retryLimit: retries,
		retryDelay: delay,
		client:     hc,
		logger:     logger.With("component", "backend_client"),
	}, nil
}

type membershipsResponse struct {
	OK          bool                   `json:"ok"`
	Memberships []workspace.Membership `json:"memberships"`
	Tenants     map[string]any         `json:"tenants"`
}

// FetchMemberships lists the caller's tenant memberships and tenant metadata.
func (c *Client) FetchMemberships(ctx context.Context, token string) (ports.Memberships, error) {
	body, err := c.getWithRetry(ctx, token, membershipsPath)
	if err != nil {
		return ports.Memberships{}, err
	}

	var resp membershipsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.Memberships{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidResponse, "decode memberships")
	}
	if !resp.OK {
		return ports.Memberships{}, apperrors.Upstreamf("memberships: backend answered ok=false")
	}

	out := ports.Memberships{
		Memberships: make([]workspace.Membership, 0, len(resp.Memberships)),
		Tenants:     make(map[string]workspace.TenantMetadata, len(resp.Tenants)),
	}
	for _, m := range resp.Memberships {
		if strings.TrimSpace(m.TenantID) == "" {
			continue
		}
		out.Memberships = append(out.Memberships, m)
	}
	for id, raw := range resp.Tenants {
		meta, err := projectTenant(raw)
		if err != nil {
			return ports.Memberships{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidResponse, "tenant "+id)
		}
		out.Tenants[id] = meta
	}
	return out, nil
}

func projectTenant(raw any) (workspace.TenantMetadata, error) {
	if raw == nil {
		return workspace.TenantMetadata{}, nil
	}
	if _, ok := raw.(map[string]any); !ok {
		return workspace.TenantMetadata{}, fmt.Errorf("tenant descriptor is %T, want object", raw)
	}
	res, err := jmespath.Search(tenantProjection, raw)
	if err != nil {
		return workspace.TenantMetadata{}, fmt.Errorf("project tenant: %w", err)
	}
	fields, _ := res.(map[string]any)
	return workspace.TenantMetadata{
		Vertical:     stringField(fields["vertical"]),
		Jurisdiction: stringField(fields["jurisdiction"]),
		CompanyName:  stringField(fields["companyName"]),
	}, nil
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

type claimTenantResponse struct {
	OK       bool   `json:"ok"`
	TenantID string `json:"tenantId"`
}

// ClaimTenant creates a tenant for the caller at the end of manual onboarding.
func (c *Client) ClaimTenant(ctx context.Context, token string, req ports.ClaimTenantRequest) (string, error) {
	body, err := c.post(ctx, token, claimTenantPath, req)
	if err != nil {
		return "", err
	}
	var resp claimTenantResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInvalidResponse, "decode claim tenant")
	}
	if !resp.OK {
		return "", apperrors.New(apperrors.ErrCodeProvisioning, "claim tenant: backend answered ok=false")
	}
	if strings.TrimSpace(resp.TenantID) == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidResponse, "claim tenant: missing tenantId")
	}
	return resp.TenantID, nil
}

type createWorkspaceResponse struct {
	OK        bool                    `json:"ok"`
	Workspace *ports.CreatedWorkspace `json:"workspace"`
}

// CreateWorkspace provisions a workspace for the caller.
func (c *Client) CreateWorkspace(
	ctx context.Context,
	token string,
	req ports.CreateWorkspaceRequest,
) (ports.CreatedWorkspace, error) {
	body, err := c.post(ctx, token, workspacesPath, req)
	if err != nil {
		return ports.CreatedWorkspace{}, err
	}
	var resp createWorkspaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.CreatedWorkspace{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidResponse, "decode workspace")
	}
	if !resp.OK {
		return ports.CreatedWorkspace{}, apperrors.New(apperrors.ErrCodeProvisioning, "create workspace: backend answered ok=false")
	}
	if resp.Workspace == nil || strings.TrimSpace(resp.Workspace.ID) == "" {
		return ports.CreatedWorkspace{}, apperrors.New(apperrors.ErrCodeInvalidResponse, "create workspace: missing workspace id")
	}
	return *resp.Workspace, nil
}

// getWithRetry retries transport failures and 5xx answers with linear backoff.
func (c *Client) getWithRetry(ctx context.Context, token, path string) ([]byte, error) {
	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		body, err := c.do(ctx, http.MethodGet, token, path, nil)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts-1 {
			break
		}
		c.logger.WarnContext(ctx, "backend request failed, retrying",
			"path", path, "attempt", attempt+1, "error", err)

		delay := time.Duration(attempt+1) * c.retryDelay
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "backend request canceled")
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, token, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, token, path, b)
}

// statusError records a non-2xx answer so the retry loop can inspect it.
type statusError struct {
	status int
	path   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend %s answered %d", e.path, e.status)
}

func retryable(err error) bool {
	if apperrors.IsUnauthorized(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	return apperrors.IsUpstream(err)
}

func (c *Client) do(ctx context.Context, method, token, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create backend request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := requestid.From(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "backend request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "read backend response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.Unauthorized("backend rejected identity token")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.Wrap(&statusError{status: resp.StatusCode, path: path}, apperrors.ErrCodeUpstream, "backend error")
	}
	return data, nil
}
