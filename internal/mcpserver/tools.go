package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the WalletGuard MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCheckTransaction = mcp.NewTool("check_transaction",
	mcp.WithDescription(
		"Run a proposed USDT transfer through the wallet firewall's risk engine. "+
			"Returns a risk score (0-100), level, decision (ALLOW, REQUIRE_CONFIRM, or BLOCK), "+
			"and the reason codes that fired. Every check is recorded in the intercept ledger "+
			"and returns a request_id needed to execute the transfer."),
	mcp.WithString("chain",
		mcp.Required(),
		mcp.Description("Target network: 'TRON' or 'ETHEREUM'"),
		mcp.Enum("TRON", "ETHEREUM")),
	mcp.WithString("to_address",
		mcp.Required(),
		mcp.Description("Destination wallet address")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transfer amount in USDT (must be positive)")),
	mcp.WithString("memo",
		mcp.Description("Optional memo attached to the intercept record")),
)

var ToolExecuteTransaction = mcp.NewTool("execute_transaction",
	mcp.WithDescription(
		"Execute a previously checked transfer by request_id. "+
			"BLOCK decisions are refused unless forced=true, which logs a forced override. "+
			"Executing the same request_id twice returns the same receipt and tx hash."),
	mcp.WithString("request_id",
		mcp.Required(),
		mcp.Description("The request_id returned by check_transaction")),
	mcp.WithBoolean("forced",
		mcp.Description("Override a BLOCK decision. The override is logged, never silent.")),
)

var ToolGetIntercept = mcp.NewTool("get_intercept",
	mcp.WithDescription(
		"Fetch one intercept record from the firewall's audit ledger by request_id. "+
			"Shows the full risk verdict plus execution state (forwarded, blocked, or forced)."),
	mcp.WithString("request_id",
		mcp.Required(),
		mcp.Description("The intercept record's request_id")),
)

var ToolListIntercepts = mcp.NewTool("list_intercepts",
	mcp.WithDescription(
		"List recent intercept records from the firewall's audit ledger, newest first. "+
			"Useful for reviewing what the firewall has blocked or allowed recently."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of records to return (default 20)")),
)

var ToolManageList = mcp.NewTool("manage_list",
	mcp.WithDescription(
		"Add or remove an address on the firewall's blacklist or whitelist. "+
			"Blacklisted addresses are always blocked; whitelisted addresses get a lower base score. "+
			"Changes affect future checks only, never already-recorded decisions."),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("'add' or 'remove'"),
		mcp.Enum("add", "remove")),
	mcp.WithString("kind",
		mcp.Required(),
		mcp.Description("Which list: 'BLACKLIST' or 'WHITELIST'"),
		mcp.Enum("BLACKLIST", "WHITELIST")),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The wallet address to add or remove")),
)
