package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oakmere/vaultd/internal/model"
)

// HTTPClient implements VaultClient using the vaultd HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Sessions ---

func (c *HTTPClient) CreateSession(ctx context.Context, req *CreateSessionRequest) (*model.VaultSession, error) {
	var session model.VaultSession
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, id string) (*model.VaultSession, error) {
	var session model.VaultSession
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	q := url.Values{}
	if req.Owner != "" {
		q.Set("owner", req.Owner)
	}
	if req.Agent != "" {
		q.Set("agent", req.Agent)
	}
	if req.Active != nil {
		q.Set("active", fmt.Sprintf("%t", *req.Active))
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", req.Offset))
	}

	path := "/v1/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListSessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Lifecycle transitions ---

func (c *HTTPClient) ApproveDelegate(ctx context.Context, sessionID, caller, delegate string) (*model.DelegationGrant, error) {
	body := map[string]string{"caller": caller, "delegate": delegate}
	var grant model.DelegationGrant
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/delegate"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (c *HTTPClient) Deposit(ctx context.Context, sessionID, caller string, amount uint64) (*model.VaultSession, error) {
	body := map[string]any{"caller": caller, "amount": amount}
	var session model.VaultSession
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/deposits"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) Spend(ctx context.Context, sessionID, caller string, amount uint64) (*model.VaultSession, error) {
	body := map[string]any{"caller": caller, "amount": amount}
	var session model.VaultSession
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/spends"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) Revoke(ctx context.Context, sessionID, caller string) (*RevokeResponse, error) {
	body := map[string]string{"caller": caller}
	var resp RevokeResponse
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/revoke"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Cleanup(ctx context.Context, sessionID, caller string) (*CleanupResponse, error) {
	body := map[string]string{"caller": caller}
	var resp CleanupResponse
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/cleanup"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Reads ---

func (c *HTTPClient) ListEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	var resp struct {
		Entries []*model.LedgerEntry `json:"entries"`
	}
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/entries"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *HTTPClient) GetGrant(ctx context.Context, sessionID string) (*model.DelegationGrant, error) {
	var grant model.DelegationGrant
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/grant"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (c *HTTPClient) GetMirror(ctx context.Context, sessionID string) (*model.SessionMirror, error) {
	var mirror model.SessionMirror
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/mirror"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &mirror); err != nil {
		return nil, err
	}
	return &mirror, nil
}

func (c *HTTPClient) ConfirmActive(ctx context.Context, sessionID string) (*model.SessionMirror, error) {
	var mirror model.SessionMirror
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/confirm"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &mirror); err != nil {
		return nil, err
	}
	return &mirror, nil
}

func (c *HTTPClient) GetAccount(ctx context.Context, wallet string) (*model.Account, error) {
	var account model.Account
	if err := c.doJSON(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(wallet), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) EstimateFees(ctx context.Context, trades uint64, priority string) (*FeeEstimateResponse, error) {
	q := url.Values{}
	q.Set("trades", fmt.Sprintf("%d", trades))
	if priority != "" {
		q.Set("priority", priority)
	}
	var resp FeeEstimateResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/fees/estimate?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Key custody ---

func (c *HTTPClient) GenerateAgentKey(ctx context.Context) (*AgentKeyResponse, error) {
	var resp AgentKeyResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agents/keys", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Dev-only ---

func (c *HTTPClient) Faucet(ctx context.Context, wallet string, amount uint64) (*model.Account, error) {
	body := map[string]any{"amount": amount}
	var account model.Account
	path := "/v1/accounts/" + url.PathEscape(wallet) + "/faucet"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
