package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewEngine(DefaultThresholds()), NewMemoryStore(), slog.New(slog.DiscardHandler))
	h := NewHandler(svc, slog.New(slog.DiscardHandler))

	r := gin.New()
	v1 := r.Group("/v1")
	h.RegisterRoutes(v1)
	h.RegisterAdminRoutes(v1.Group("/admin"))
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckEndpoint(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/v1/risk/check", gin.H{
		"chain":     "TRON",
		"toAddress": "addr1",
		"amount":    50000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result RiskResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 50, result.RiskScore)
	assert.Equal(t, LevelMedium, result.RiskLevel)
	assert.Equal(t, DecisionAllow, result.Decision)
	assert.Equal(t, []string{ReasonMediumLargeAmount}, result.ReasonCodes)
	assert.NotEmpty(t, result.RequestID)
}

func TestCheckEndpointRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter()

	cases := []struct {
		name string
		body gin.H
		code int
		err  string
	}{
		{"missing fields", gin.H{"chain": "TRON"}, http.StatusBadRequest, "invalid_request"},
		{"bad chain", gin.H{"chain": "SOLANA", "toAddress": "a", "amount": 1}, http.StatusBadRequest, "invalid_chain"},
		{"negative amount", gin.H{"chain": "TRON", "toAddress": "a", "amount": -1}, http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/v1/risk/check", tc.body)
			assert.Equal(t, tc.code, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.err, resp["error"])
		})
	}
}

func TestExecuteEndpoint(t *testing.T) {
	r, svc := newTestRouter()
	ctx := context.Background()

	_, result, err := svc.CheckTransaction(ctx, &TxRequest{
		Chain: ChainTron, ToAddress: "addr1", Amount: 500,
	})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/v1/tx/send", gin.H{"requestId": result.RequestID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var receipt Receipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, StatusForwarded, receipt.Status)
	assert.Equal(t, "tx_"+result.RequestID, receipt.TxHash)
}

func TestExecuteEndpointQueryParams(t *testing.T) {
	r, svc := newTestRouter()
	ctx := context.Background()

	require.NoError(t, svc.AddAddress(ctx, ListBlacklist, "bad"))
	_, result, err := svc.CheckTransaction(ctx, &TxRequest{
		Chain: ChainTron, ToAddress: "bad", Amount: 500,
	})
	require.NoError(t, err)

	// Wallet clients pass request_id and forced in the query string
	w := doJSON(t, r, http.MethodPost, "/v1/tx/send?request_id="+result.RequestID+"&forced=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var receipt Receipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, StatusForcedLogged, receipt.Status)
}

func TestExecuteEndpointErrors(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/v1/tx/send", gin.H{"forced": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/tx/send", gin.H{"requestId": "unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp["error"])
}

func TestPredictEndpointWithoutScorer(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/v1/risk/predict", gin.H{
		"features": make([]float64, 10),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/risk/predict", gin.H{
		"features": make([]float64, FeatureDim),
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "scorer_unavailable", resp["error"])
}

func TestInterceptEndpoints(t *testing.T) {
	r, svc := newTestRouter()
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for _, amount := range []float64{500, 50_000, 150_000} {
		_, result, err := svc.CheckTransaction(ctx, &TxRequest{
			Chain: ChainTron, ToAddress: "addr1", Amount: amount,
		})
		require.NoError(t, err)
		ids = append(ids, result.RequestID)
	}

	w := doJSON(t, r, http.MethodGet, "/v1/admin/intercepts/"+ids[2], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, ids[2], rec.RequestID)
	assert.Equal(t, 70, rec.RiskScore)

	w = doJSON(t, r, http.MethodGet, "/v1/admin/intercepts/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Paginated listing, newest first
	w = doJSON(t, r, http.MethodGet, "/v1/admin/intercepts?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items      []Record `json:"items"`
		HasMore    bool     `json:"hasMore"`
		NextCursor string   `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, ids[2], page.Items[0].RequestID)

	w = doJSON(t, r, http.MethodGet, "/v1/admin/intercepts?limit=2&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[0], page.Items[0].RequestID)

	w = doJSON(t, r, http.MethodGet, "/v1/admin/intercepts?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEndpoints(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/v1/admin/list/add", gin.H{
		"kind": "BLACKLIST", "address": "bad_addr",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/v1/admin/list?kind=BLACKLIST", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Kind  string   `json:"kind"`
		Items []string `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, []string{"bad_addr"}, listing.Items)

	// The blacklisted address now blocks
	w = doJSON(t, r, http.MethodPost, "/v1/risk/check", gin.H{
		"chain": "TRON", "toAddress": "bad_addr", "amount": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var result RiskResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, DecisionBlock, result.Decision)

	w = doJSON(t, r, http.MethodPost, "/v1/admin/list/remove", gin.H{
		"kind": "BLACKLIST", "address": "bad_addr",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/admin/list?kind=BLACKLIST", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Empty(t, listing.Items)

	// Unknown kinds are rejected everywhere
	w = doJSON(t, r, http.MethodPost, "/v1/admin/list/add", gin.H{
		"kind": "GREYLIST", "address": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/admin/list?kind=GREYLIST", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
