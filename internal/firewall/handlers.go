package firewall

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walletguard/walletguard/internal/logging"
	"github.com/walletguard/walletguard/internal/pagination"
	"github.com/walletguard/walletguard/internal/validation"
)

// Handler provides HTTP endpoints for the firewall.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a firewall HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes sets up the wallet-facing firewall routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/risk/check", h.CheckTransaction)
	r.POST("/risk/predict", h.Predict)
	r.POST("/tx/send", h.Execute)
}

// RegisterAdminRoutes sets up the audit/list-management routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/intercepts", h.ListIntercepts)
	r.GET("/intercepts/:requestId", h.GetIntercept)
	r.GET("/list", h.ListAddresses)
	r.POST("/list/add", h.AddAddress)
	r.POST("/list/remove", h.RemoveAddress)
}

// CheckRequest is the wire shape of POST /risk/check.
type CheckRequest struct {
	Chain       string  `json:"chain" binding:"required"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
	Memo        string  `json:"memo"`
}

// CheckTransaction handles POST /risk/check.
func (h *Handler) CheckTransaction(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	chain := Chain(req.Chain)
	if !ValidChain(chain) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_chain",
			"message": "chain must be TRON or ETHEREUM",
		})
		return
	}

	toAddress := validation.NormalizeAddress(string(chain), req.ToAddress)
	if !validation.PlausibleAddress(string(chain), toAddress) {
		// Addresses are opaque to the engine; log unusual shapes, don't reject.
		logging.L(c.Request.Context()).Debug("address has unexpected shape",
			"chain", chain, "address", toAddress)
	}

	_, result, err := h.svc.CheckTransaction(c.Request.Context(), &TxRequest{
		Chain:       chain,
		FromAddress: req.FromAddress,
		ToAddress:   toAddress,
		Amount:      req.Amount,
		Memo:        validation.SanitizeString(req.Memo, validation.MaxStringLength),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PredictRequest is the wire shape of POST /risk/predict.
type PredictRequest struct {
	Features []float64 `json:"features" binding:"required"`
}

// Predict handles POST /risk/predict (optional ML scorer path).
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	pred, err := h.svc.Predict(c.Request.Context(), req.Features)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

// ExecuteRequest is the wire shape of POST /tx/send.
type ExecuteRequest struct {
	RequestID string `json:"requestId"`
	Forced    bool   `json:"forced"`
}

// Execute handles POST /tx/send. The request id may arrive in the JSON body
// or as a query parameter (wallet clients use both).
func (h *Handler) Execute(c *gin.Context) {
	var req ExecuteRequest
	_ = c.ShouldBindJSON(&req)
	if req.RequestID == "" {
		req.RequestID = c.Query("request_id")
		req.Forced = c.Query("forced") == "true"
	}
	if req.RequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "requestId is required",
		})
		return
	}

	receipt, err := h.svc.Execute(c.Request.Context(), req.RequestID, req.Forced)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// ListIntercepts handles GET /admin/intercepts.
func (h *Handler) ListIntercepts(c *gin.Context) {
	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	var opts []ListOption
	if cursor := c.Query("cursor"); cursor != "" {
		opts = append(opts, WithCursor(cursor))
	}

	// Fetch one extra to compute the next-page cursor.
	records, err := h.svc.ListRecent(c.Request.Context(), limit+1, opts...)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items, next, more := pagination.ComputePage(records, limit, func(r *Record) (time.Time, string) {
		return r.Timestamp, r.RequestID
	})

	resp := gin.H{"items": items, "hasMore": more}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// GetIntercept handles GET /admin/intercepts/:requestId.
func (h *Handler) GetIntercept(c *gin.Context) {
	record, err := h.svc.GetRecord(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListRequest is the wire shape of the list mutation endpoints.
type ListRequest struct {
	Kind    string `json:"kind" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// AddAddress handles POST /admin/list/add.
func (h *Handler) AddAddress(c *gin.Context) {
	h.mutateList(c, h.svc.AddAddress)
}

// RemoveAddress handles POST /admin/list/remove.
func (h *Handler) RemoveAddress(c *gin.Context) {
	h.mutateList(c, h.svc.RemoveAddress)
}

func (h *Handler) mutateList(c *gin.Context, op func(ctx context.Context, kind ListKind, address string) error) {
	var req ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "kind and address are required",
		})
		return
	}

	if err := op(c.Request.Context(), ListKind(req.Kind), req.Address); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListAddresses handles GET /admin/list?kind=BLACKLIST.
func (h *Handler) ListAddresses(c *gin.Context) {
	kind := ListKind(c.Query("kind"))
	members, err := h.svc.ListAddresses(c.Request.Context(), kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if members == nil {
		members = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "items": members})
}

// respondError maps service errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No intercept record for that request id",
		})
	case errors.Is(err, ErrInvalidChain),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidListKind),
		errors.Is(err, ErrBadFeatureVector):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_argument",
			"message": err.Error(),
		})
	case errors.Is(err, ErrScorerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "scorer_unavailable",
			"message": "Model scorer is not available; rule-based decisions remain in effect",
		})
	default:
		h.logger.Error("firewall request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": "Ledger operation failed",
		})
	}
}
