// Package walletguard is a minimal Go client for the WalletGuard firewall
// API. It has no dependencies beyond the standard library so that agent
// runtimes can embed it without inheriting the server's module graph.
package walletguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a WalletGuard server.
type Client struct {
	baseURL     string
	adminSecret string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAdminSecret attaches the X-Admin-Secret header to every request,
// unlocking the admin surface (intercept ledger, address lists).
func WithAdminSecret(secret string) Option {
	return func(c *Client) { c.adminSecret = secret }
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RiskResult is the firewall's verdict on a proposed transaction.
type RiskResult struct {
	RequestID   string          `json:"requestId"`
	RiskScore   int             `json:"riskScore"`
	RiskLevel   string          `json:"riskLevel"`
	Decision    string          `json:"decision"`
	ReasonCodes []string        `json:"reasonCodes"`
	Votes       map[string]Vote `json:"votes"`
}

// Vote is one advisory detector sub-score.
type Vote struct {
	Triggered bool    `json:"triggered"`
	Score     float64 `json:"score"`
}

// Receipt is the execution gate's response for one request id.
type Receipt struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
	TxHash    string `json:"txHash,omitempty"`
}

// Record is one row of the intercept ledger.
type Record struct {
	RequestID   string    `json:"requestId"`
	Timestamp   time.Time `json:"timestamp"`
	Chain       string    `json:"chain"`
	FromAddress string    `json:"fromAddress,omitempty"`
	ToAddress   string    `json:"toAddress"`
	Amount      float64   `json:"amount"`
	RiskScore   int       `json:"riskScore"`
	RiskLevel   string    `json:"riskLevel"`
	Decision    string    `json:"decision"`
	ReasonCodes []string  `json:"reasonCodes"`
	Forced      bool      `json:"forced"`
	TxHash      string    `json:"txHash,omitempty"`
}

// RecordPage is one page of ledger records.
type RecordPage struct {
	Items      []Record `json:"items"`
	NextCursor string   `json:"nextCursor,omitempty"`
	HasMore    bool     `json:"hasMore"`
}

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("walletguard: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("walletguard: HTTP %d", e.StatusCode)
}

// CheckTransaction runs a proposed transaction through the risk engine.
// Decision ALLOW means ExecuteTransaction will forward it; BLOCK means it
// will be refused unless forced.
func (c *Client) CheckTransaction(ctx context.Context, chain, toAddress string, amount float64) (*RiskResult, error) {
	body := map[string]any{
		"chain":     chain,
		"toAddress": toAddress,
		"amount":    amount,
	}
	var result RiskResult
	if err := c.do(ctx, http.MethodPost, "/v1/risk/check", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecuteTransaction asks the gate to execute a previously checked request.
// Set forced to override a BLOCK decision; the override is recorded in the
// ledger.
func (c *Client) ExecuteTransaction(ctx context.Context, requestID string, forced bool) (*Receipt, error) {
	body := map[string]any{
		"requestId": requestID,
		"forced":    forced,
	}
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/tx/send", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetIntercept fetches one ledger record by request id. Admin.
func (c *Client) GetIntercept(ctx context.Context, requestID string) (*Record, error) {
	var record Record
	path := "/v1/admin/intercepts/" + url.PathEscape(requestID)
	if err := c.do(ctx, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListIntercepts pages through the ledger, newest first. Pass the previous
// page's NextCursor to continue; an empty cursor starts from the top. Admin.
func (c *Client) ListIntercepts(ctx context.Context, limit int, cursor string) (*RecordPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/v1/admin/intercepts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page RecordPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AddToList puts an address on BLACKLIST or WHITELIST. Admin.
func (c *Client) AddToList(ctx context.Context, kind, address string) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/list/add",
		map[string]string{"kind": kind, "address": address}, nil)
}

// RemoveFromList takes an address off BLACKLIST or WHITELIST. Admin.
func (c *Client) RemoveFromList(ctx context.Context, kind, address string) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/list/remove",
		map[string]string{"kind": kind, "address": address}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("walletguard: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("walletguard: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.adminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("walletguard: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("walletguard: decode response: %w", err)
	}
	return nil
}
