package firewall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/walletguard/walletguard/internal/idgen"
	"github.com/walletguard/walletguard/internal/logging"
	"github.com/walletguard/walletguard/internal/metrics"
	"github.com/walletguard/walletguard/internal/syncutil"
	"github.com/walletguard/walletguard/internal/traces"
)

// txHashPrefix makes synthesized execution receipts recognizable as
// firewall-issued rather than on-chain hashes.
const txHashPrefix = "tx_"

// DefaultListLimit caps ListRecent when the caller does not say.
const DefaultListLimit = 200

// TxRequest describes one proposed transfer submitted for assessment.
type TxRequest struct {
	Chain       Chain   `json:"chain"`
	FromAddress string  `json:"fromAddress,omitempty"`
	ToAddress   string  `json:"toAddress"`
	Amount      float64 `json:"amount"`
	Memo        string  `json:"memo,omitempty"`
}

// RiskResult is what the caller gets back from one assessment.
type RiskResult struct {
	RequestID   string          `json:"requestId"`
	RiskScore   int             `json:"riskScore"`
	RiskLevel   RiskLevel       `json:"riskLevel"`
	Decision    Decision        `json:"decision"`
	ReasonCodes []string        `json:"reasonCodes"`
	Votes       map[string]Vote `json:"votes"`
}

// EventSink receives decision and execution events for realtime consumers.
type EventSink interface {
	Publish(eventType string, data any)
}

// Service is the decision recorder and execution gate: it runs the rule
// engine, persists every verdict to the intercept ledger, and finalizes
// records exactly once.
type Service struct {
	engine *Engine
	store  Store
	scorer Scorer    // nil = rule-only firewall
	events EventSink // nil = no realtime feed
	locks  syncutil.ShardedMutex
	logger *slog.Logger
}

// NewService creates the firewall service.
func NewService(engine *Engine, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, store: store, logger: logger}
}

// WithScorer attaches the optional model scorer.
func (s *Service) WithScorer(scorer Scorer) *Service {
	s.scorer = scorer
	return s
}

// WithEvents attaches a realtime event sink.
func (s *Service) WithEvents(sink EventSink) *Service {
	s.events = sink
	return s
}

// CheckTransaction assesses a proposed transfer and records the verdict.
//
// Exactly one ledger write per call. The request id is content-derived but
// salted with the submission time, so retrying the same transfer creates a
// distinct record. Distinct attempts are distinct records.
func (s *Service) CheckTransaction(ctx context.Context, req *TxRequest) (*Record, *RiskResult, error) {
	ctx, span := traces.StartSpan(ctx, "firewall.check",
		attribute.String("chain", string(req.Chain)),
	)
	defer span.End()

	if !ValidChain(req.Chain) {
		return nil, nil, ErrInvalidChain
	}
	if req.ToAddress == "" {
		return nil, nil, ErrInvalidAddress
	}
	if req.Amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	membership, err := s.store.Membership(ctx, req.ToAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("list membership lookup: %w", err)
	}

	assessment := s.engine.Assess(req.Chain, req.ToAddress, req.Amount, membership)
	requestID := idgen.RequestID(string(req.Chain), req.ToAddress, req.Amount)

	record := &Record{
		RequestID:   requestID,
		Timestamp:   time.Now().UTC(),
		Chain:       req.Chain,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Amount:      req.Amount,
		RiskScore:   assessment.Score,
		RiskLevel:   assessment.Level,
		Decision:    assessment.Decision,
		ReasonCodes: assessment.ReasonCodes,
	}

	if err := s.store.Put(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("persist intercept: %w", err)
	}

	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Decision)).Inc()
	logging.L(ctx).Info("transaction assessed",
		"request_id", requestID,
		"chain", req.Chain,
		"score", assessment.Score,
		"decision", assessment.Decision,
		"reasons", assessment.ReasonCodes,
	)
	if s.events != nil {
		s.events.Publish("intercept", record)
	}

	return record, &RiskResult{
		RequestID:   requestID,
		RiskScore:   assessment.Score,
		RiskLevel:   assessment.Level,
		Decision:    assessment.Decision,
		ReasonCodes: assessment.ReasonCodes,
		Votes:       assessment.Votes,
	}, nil
}

// Execute presents a recorded decision to the execution gate.
//
// The state machine: a BLOCK record stays blocked unless forced; any other
// record (or a forced BLOCK) gets a deterministic tx hash and becomes
// terminal. Re-executing a terminal record replays the stored receipt; a
// second call never mints a second hash. The per-key lock makes the
// read-modify-write atomic under concurrent overrides.
func (s *Service) Execute(ctx context.Context, requestID string, forced bool) (*Receipt, error) {
	ctx, span := traces.StartSpan(ctx, "firewall.execute",
		attribute.String("request_id", requestID),
		attribute.Bool("forced", forced),
	)
	defer span.End()

	unlock := s.locks.Lock(requestID)
	defer unlock()

	record, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if record.Executed() {
		status := StatusForwarded
		if record.Forced {
			status = StatusForcedLogged
		}
		return &Receipt{Status: status, RequestID: requestID, TxHash: record.TxHash}, nil
	}

	if record.Decision == DecisionBlock && !forced {
		metrics.ExecutionsTotal.WithLabelValues(string(StatusBlocked)).Inc()
		logging.L(ctx).Info("execution blocked", "request_id", requestID)
		return &Receipt{Status: StatusBlocked, RequestID: requestID}, nil
	}

	record.TxHash = txHashPrefix + requestID
	record.Forced = forced
	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("persist execution: %w", err)
	}

	status := StatusForwarded
	if forced {
		status = StatusForcedLogged
		metrics.ForcedOverridesTotal.Inc()
	}
	metrics.ExecutionsTotal.WithLabelValues(string(status)).Inc()

	receipt := &Receipt{Status: status, RequestID: requestID, TxHash: record.TxHash}
	logging.L(ctx).Info("transaction executed",
		"request_id", requestID,
		"status", status,
		"forced", forced,
	)
	if s.events != nil {
		s.events.Publish("execution", receipt)
	}
	return receipt, nil
}

// Predict runs the optional model scorer over a raw feature vector.
func (s *Service) Predict(ctx context.Context, features []float64) (*Prediction, error) {
	if len(features) != FeatureDim {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrBadFeatureVector, FeatureDim, len(features))
	}
	if s.scorer == nil {
		return nil, ErrScorerUnavailable
	}
	return s.scorer.Predict(ctx, features)
}

// GetRecord returns one intercept record by request id.
func (s *Service) GetRecord(ctx context.Context, requestID string) (*Record, error) {
	return s.store.Get(ctx, requestID)
}

// ListRecent returns intercept records newest first.
func (s *Service) ListRecent(ctx context.Context, limit int, opts ...ListOption) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.ListRecent(ctx, limit, opts...)
}

// AddAddress adds an address to the named list. Membership changes take
// effect on the next assessment; already-recorded decisions are never
// re-evaluated.
func (s *Service) AddAddress(ctx context.Context, kind ListKind, address string) error {
	if !ValidListKind(kind) {
		return ErrInvalidListKind
	}
	if err := s.store.AddAddress(ctx, kind, address); err != nil {
		return err
	}
	s.updateListSize(ctx, kind)
	return nil
}

// RemoveAddress removes an address from the named list.
func (s *Service) RemoveAddress(ctx context.Context, kind ListKind, address string) error {
	if !ValidListKind(kind) {
		return ErrInvalidListKind
	}
	if err := s.store.RemoveAddress(ctx, kind, address); err != nil {
		return err
	}
	s.updateListSize(ctx, kind)
	return nil
}

// ListAddresses returns the members of the named list.
func (s *Service) ListAddresses(ctx context.Context, kind ListKind) ([]string, error) {
	if !ValidListKind(kind) {
		return nil, ErrInvalidListKind
	}
	return s.store.ListAddresses(ctx, kind)
}

func (s *Service) updateListSize(ctx context.Context, kind ListKind) {
	members, err := s.store.ListAddresses(ctx, kind)
	if err != nil {
		return
	}
	metrics.ListSize.WithLabelValues(string(kind)).Set(float64(len(members)))
}
