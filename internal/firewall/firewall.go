// Package firewall implements transaction risk decisioning for the wallet
// firewall.
//
// Every proposed transfer is scored by a deterministic rule engine, the
// verdict is written to a durable intercept ledger, and execution is gated
// on that recorded decision. A BLOCK verdict can only be bypassed by an
// explicit forced override, which is logged rather than silently allowed.
package firewall

import (
	"context"
	"errors"
	"time"

	"github.com/walletguard/walletguard/internal/pagination"
)

// Chain identifies the network a transfer targets.
type Chain string

const (
	ChainTron     Chain = "TRON"
	ChainEthereum Chain = "ETHEREUM"
)

// RiskLevel is the coarse severity label derived from the numeric score.
type RiskLevel string

const (
	LevelLow     RiskLevel = "LOW"
	LevelMedium  RiskLevel = "MEDIUM"
	LevelHigh    RiskLevel = "HIGH"
	LevelBlocked RiskLevel = "BLOCKED"
)

// Decision is the engine's actionable verdict on a transaction.
type Decision string

const (
	DecisionAllow          Decision = "ALLOW"
	DecisionRequireConfirm Decision = "REQUIRE_CONFIRM"
	DecisionBlock          Decision = "BLOCK"
)

// ExecStatus is the outcome of presenting a recorded decision to the
// execution gate.
type ExecStatus string

const (
	StatusForwarded    ExecStatus = "FORWARDED"
	StatusBlocked      ExecStatus = "BLOCKED"
	StatusForcedLogged ExecStatus = "FORCED_LOGGED"
)

// ListKind names one of the two address lists.
type ListKind string

const (
	ListBlacklist ListKind = "BLACKLIST"
	ListWhitelist ListKind = "WHITELIST"
)

// Reason codes explaining which rules fired.
const (
	ReasonBlacklistHit      = "BLACKLIST_HIT"
	ReasonWhitelistHit      = "WHITELIST_HIT"
	ReasonLargeAmount       = "LARGE_AMOUNT"
	ReasonMediumLargeAmount = "MEDIUM_LARGE_AMOUNT"
	ReasonNoSignificantRisk = "NO_SIGNIFICANT_RISK"
)

var (
	ErrRecordNotFound    = errors.New("firewall: intercept record not found")
	ErrInvalidChain      = errors.New("firewall: chain must be TRON or ETHEREUM")
	ErrInvalidAmount     = errors.New("firewall: amount must be positive")
	ErrInvalidAddress    = errors.New("firewall: destination address is required")
	ErrInvalidListKind   = errors.New("firewall: list kind must be BLACKLIST or WHITELIST")
	ErrBadFeatureVector  = errors.New("firewall: feature vector has wrong length")
	ErrScorerUnavailable = errors.New("firewall: model scorer unavailable")
)

// ValidChain reports whether c is one of the supported networks.
func ValidChain(c Chain) bool {
	return c == ChainTron || c == ChainEthereum
}

// ValidListKind reports whether k names a known address list.
func ValidListKind(k ListKind) bool {
	return k == ListBlacklist || k == ListWhitelist
}

// Record is one persisted intercept: the full outcome of a single risk
// assessment, keyed by request id. The risk tuple (score, level, decision,
// reason codes) is fixed at creation; only Forced and TxHash change, once,
// when the execution gate finalizes the record.
type Record struct {
	RequestID   string    `json:"requestId"`
	Timestamp   time.Time `json:"timestamp"`
	Chain       Chain     `json:"chain"`
	FromAddress string    `json:"fromAddress,omitempty"`
	ToAddress   string    `json:"toAddress"`
	Amount      float64   `json:"amount"`
	RiskScore   int       `json:"riskScore"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Decision    Decision  `json:"decision"`
	ReasonCodes []string  `json:"reasonCodes"`
	Forced      bool      `json:"forced"`
	TxHash      string    `json:"txHash,omitempty"` // empty until forwarded or forced
}

// Executed reports whether the record has reached a terminal executed state.
func (r *Record) Executed() bool {
	return r.TxHash != ""
}

// Receipt is the execution gate's response for one request id.
type Receipt struct {
	Status    ExecStatus `json:"status"`
	RequestID string     `json:"requestId"`
	TxHash    string     `json:"txHash,omitempty"`
}

// Vote is one advisory sub-score from a named detector component. Votes
// never affect the decision; they are derived from the final score for
// dashboard display.
type Vote struct {
	Triggered bool    `json:"triggered"`
	Score     float64 `json:"score"`
}

// Assessment is the rule engine's verdict on a transaction.
type Assessment struct {
	Score       int             `json:"riskScore"`
	Level       RiskLevel       `json:"riskLevel"`
	Decision    Decision        `json:"decision"`
	ReasonCodes []string        `json:"reasonCodes"`
	Votes       map[string]Vote `json:"votes"`
}

// Membership captures an address's presence on the two lists at the moment
// of assessment.
type Membership struct {
	Blacklisted bool
	Whitelisted bool
}

// ListOption configures optional parameters for ListRecent.
type ListOption func(*listOpts)

type listOpts struct {
	cursor *pagination.Cursor
}

func applyListOpts(opts []ListOption) listOpts {
	var o listOpts
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithCursor restricts ListRecent to records older than the cursor position.
func WithCursor(cursor string) ListOption {
	return func(o *listOpts) {
		c, err := pagination.Decode(cursor)
		if err == nil {
			o.cursor = c
		}
	}
}

// Store is the durable intercept ledger plus list membership. Put is an
// upsert by RequestID. RemoveAddress of a non-member address succeeds as a
// no-op.
type Store interface {
	Put(ctx context.Context, record *Record) error
	Get(ctx context.Context, requestID string) (*Record, error)
	ListRecent(ctx context.Context, limit int, opts ...ListOption) ([]*Record, error)

	AddAddress(ctx context.Context, kind ListKind, address string) error
	RemoveAddress(ctx context.Context, kind ListKind, address string) error
	ListAddresses(ctx context.Context, kind ListKind) ([]string, error)
	Membership(ctx context.Context, address string) (Membership, error)
}
