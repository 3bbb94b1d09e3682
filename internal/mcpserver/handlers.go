package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *FirewallClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *FirewallClient) *Handlers {
	return &Handlers{client: client}
}

// HandleCheckTransaction runs a transfer through the risk engine.
func (h *Handlers) HandleCheckTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chain := req.GetString("chain", "")
	if chain == "" {
		return mcp.NewToolResultError("chain is required"), nil
	}
	toAddress := req.GetString("to_address", "")
	if toAddress == "" {
		return mcp.NewToolResultError("to_address is required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be positive"), nil
	}
	memo := req.GetString("memo", "")

	raw, err := h.client.CheckTransaction(ctx, chain, toAddress, amount, memo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Risk check failed: %v", err)), nil
	}

	text, err := formatRiskResult(raw, chain, toAddress, amount)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse risk result: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleExecuteTransaction presents a decision to the execution gate.
func (h *Handlers) HandleExecuteTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := req.GetString("request_id", "")
	if requestID == "" {
		return mcp.NewToolResultError("request_id is required"), nil
	}
	forced := req.GetBool("forced", false)

	raw, err := h.client.ExecuteTransaction(ctx, requestID, forced)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}

	text, err := formatReceipt(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse receipt: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetIntercept fetches one audit record.
func (h *Handlers) HandleGetIntercept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := req.GetString("request_id", "")
	if requestID == "" {
		return mcp.NewToolResultError("request_id is required"), nil
	}

	raw, err := h.client.GetIntercept(ctx, requestID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get intercept: %v", err)), nil
	}

	var rec interceptRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse intercept: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRecord(&rec)), nil
}

// HandleListIntercepts lists recent audit records.
func (h *Handlers) HandleListIntercepts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListIntercepts(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list intercepts: %v", err)), nil
	}

	var page struct {
		Items   []interceptRecord `json:"items"`
		HasMore bool              `json:"hasMore"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse intercepts: %v", err)), nil
	}

	if len(page.Items) == 0 {
		return mcp.NewToolResultText("No intercept records found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent intercepts (%d):\n\n", len(page.Items))
	for i := range page.Items {
		rec := &page.Items[i]
		fmt.Fprintf(&sb, "%s | %s | %s -> score %d %s/%s%s\n",
			rec.RequestID,
			rec.Chain,
			rec.ToAddress,
			rec.RiskScore,
			rec.RiskLevel,
			rec.Decision,
			executionSuffix(rec),
		)
	}
	if page.HasMore {
		sb.WriteString("\n(more records available)")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleManageList adds or removes a list entry.
func (h *Handlers) HandleManageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")
	if action != "add" && action != "remove" {
		return mcp.NewToolResultError("action must be 'add' or 'remove'"), nil
	}
	kind := req.GetString("kind", "")
	if kind == "" {
		return mcp.NewToolResultError("kind is required"), nil
	}
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	if _, err := h.client.ModifyList(ctx, action, kind, address); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List update failed: %v", err)), nil
	}

	verb := "added to"
	if action == "remove" {
		verb = "removed from"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s %s the %s.", address, verb, kind)), nil
}

// -----------------------------------------------------------------------------
// Formatting
// -----------------------------------------------------------------------------

type interceptRecord struct {
	RequestID   string    `json:"requestId"`
	Timestamp   time.Time `json:"timestamp"`
	Chain       string    `json:"chain"`
	ToAddress   string    `json:"toAddress"`
	Amount      float64   `json:"amount"`
	RiskScore   int       `json:"riskScore"`
	RiskLevel   string    `json:"riskLevel"`
	Decision    string    `json:"decision"`
	ReasonCodes []string  `json:"reasonCodes"`
	Forced      bool      `json:"forced"`
	TxHash      string    `json:"txHash"`
}

func formatRiskResult(raw json.RawMessage, chain, toAddress string, amount float64) (string, error) {
	var result struct {
		RequestID   string   `json:"requestId"`
		RiskScore   int      `json:"riskScore"`
		RiskLevel   string   `json:"riskLevel"`
		Decision    string   `json:"decision"`
		ReasonCodes []string `json:"reasonCodes"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transfer: %.2f USDT to %s on %s\n", amount, toAddress, chain)
	fmt.Fprintf(&sb, "Risk score: %d (%s)\n", result.RiskScore, result.RiskLevel)
	fmt.Fprintf(&sb, "Decision: %s\n", result.Decision)
	fmt.Fprintf(&sb, "Reasons: %s\n", strings.Join(result.ReasonCodes, ", "))
	fmt.Fprintf(&sb, "Request ID: %s\n", result.RequestID)

	switch result.Decision {
	case "ALLOW":
		sb.WriteString("\nUse execute_transaction with this request_id to send the transfer.")
	case "REQUIRE_CONFIRM":
		sb.WriteString("\nConfirm with the user before calling execute_transaction.")
	case "BLOCK":
		sb.WriteString("\nThis transfer is blocked. Executing requires forced=true, which is logged.")
	}
	return sb.String(), nil
}

func formatReceipt(raw json.RawMessage) (string, error) {
	var receipt struct {
		Status    string `json:"status"`
		RequestID string `json:"requestId"`
		TxHash    string `json:"txHash"`
	}
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return "", err
	}

	switch receipt.Status {
	case "BLOCKED":
		return fmt.Sprintf("Execution refused: request %s carries a BLOCK decision.\n"+
			"Re-run with forced=true only if the user explicitly overrides.", receipt.RequestID), nil
	case "FORCED_LOGGED":
		return fmt.Sprintf("Forced override executed and logged.\nRequest: %s\nTx hash: %s",
			receipt.RequestID, receipt.TxHash), nil
	default:
		return fmt.Sprintf("Transfer forwarded.\nRequest: %s\nTx hash: %s",
			receipt.RequestID, receipt.TxHash), nil
	}
}

func formatRecord(rec *interceptRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Intercept %s\n", rec.RequestID)
	fmt.Fprintf(&sb, "Time: %s\n", rec.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Transfer: %.2f USDT to %s on %s\n", rec.Amount, rec.ToAddress, rec.Chain)
	fmt.Fprintf(&sb, "Risk: %d (%s), decision %s\n", rec.RiskScore, rec.RiskLevel, rec.Decision)
	fmt.Fprintf(&sb, "Reasons: %s\n", strings.Join(rec.ReasonCodes, ", "))
	if rec.TxHash != "" {
		if rec.Forced {
			fmt.Fprintf(&sb, "Executed via FORCED override, tx hash %s\n", rec.TxHash)
		} else {
			fmt.Fprintf(&sb, "Executed, tx hash %s\n", rec.TxHash)
		}
	} else {
		sb.WriteString("Not executed\n")
	}
	return sb.String()
}

func executionSuffix(rec *interceptRecord) string {
	if rec.TxHash == "" {
		return ""
	}
	if rec.Forced {
		return " [FORCED]"
	}
	return " [sent]"
}
