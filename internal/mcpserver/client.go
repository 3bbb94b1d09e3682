package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the firewall API.
type Config struct {
	APIURL      string // Base URL, e.g. "http://localhost:8080"
	AdminSecret string // Admin secret for list management (optional)
}

// FirewallClient is a pure HTTP client for the firewall API.
type FirewallClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewFirewallClient creates a new client for the firewall API.
func NewFirewallClient(cfg Config) *FirewallClient {
	return &FirewallClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the firewall.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the firewall and returns the response body.
func (c *FirewallClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.AdminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.cfg.AdminSecret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// CheckTransaction submits a transfer for risk assessment.
func (c *FirewallClient) CheckTransaction(ctx context.Context, chain, toAddress string, amount float64, memo string) (json.RawMessage, error) {
	body := map[string]any{
		"chain":     chain,
		"toAddress": toAddress,
		"amount":    amount,
	}
	if memo != "" {
		body["memo"] = memo
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/risk/check", nil, body)
}

// ExecuteTransaction presents a recorded decision to the execution gate.
func (c *FirewallClient) ExecuteTransaction(ctx context.Context, requestID string, forced bool) (json.RawMessage, error) {
	body := map[string]any{
		"requestId": requestID,
		"forced":    forced,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/tx/send", nil, body)
}

// GetIntercept fetches one intercept record by request id.
func (c *FirewallClient) GetIntercept(ctx context.Context, requestID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/admin/intercepts/"+requestID, nil, nil)
}

// ListIntercepts fetches recent intercept records.
func (c *FirewallClient) ListIntercepts(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/admin/intercepts", q, nil)
}

// ModifyList adds or removes an address on the named list.
func (c *FirewallClient) ModifyList(ctx context.Context, action, kind, address string) (json.RawMessage, error) {
	body := map[string]string{
		"kind":    kind,
		"address": address,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/admin/list/"+action, nil, body)
}
