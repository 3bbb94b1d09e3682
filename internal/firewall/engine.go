package firewall

import (
	"fmt"
	"math"
	"sort"
)

// Amount tiers and base scores for the rule engine.
const (
	baseScore          = 30
	whitelistBaseScore = 10

	mediumLargeAmount    = 10_000
	largeAmount          = 100_000
	mediumLargeSurcharge = 20
	largeSurcharge       = 40

	// Lower bound of the MEDIUM band. Unlike the decision cut points this
	// is purely cosmetic (MEDIUM and LOW both map to ALLOW) and is not
	// configurable.
	mediumLevelMin = 40

	maxScore = 100
)

// Thresholds are the three configurable decision cut points.
type Thresholds struct {
	AllowMax   int // highest score that still maps to ALLOW
	ConfirmMin int // lowest score that maps to REQUIRE_CONFIRM
	BlockMin   int // lowest score that maps to BLOCK
}

// DefaultThresholds returns the standard cut points: ALLOW up to 69,
// REQUIRE_CONFIRM from 70, BLOCK from 90.
func DefaultThresholds() Thresholds {
	return Thresholds{AllowMax: 69, ConfirmMin: 70, BlockMin: 90}
}

// Validate checks the ordering invariant allow-max < confirm-min <= block-min.
func (t Thresholds) Validate() error {
	if t.AllowMax >= t.ConfirmMin {
		return fmt.Errorf("allow-max (%d) must be below confirm-min (%d)", t.AllowMax, t.ConfirmMin)
	}
	if t.ConfirmMin > t.BlockMin {
		return fmt.Errorf("confirm-min (%d) must not exceed block-min (%d)", t.ConfirmMin, t.BlockMin)
	}
	return nil
}

// Engine maps transaction attributes and list membership to a risk verdict.
// Assess is a pure function: no I/O, no randomness, no clock. Identical
// inputs under identical thresholds always produce identical assessments.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a rule engine with the given decision cut points.
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Thresholds returns the engine's decision cut points.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Assess scores a proposed transfer.
//
// A blacklisted destination short-circuits everything else: maximal score,
// BLOCK, single reason code. Otherwise the base score (10 whitelisted, 30
// not) picks up an amount-tier surcharge, is clamped to [0, 100], and is
// mapped through the threshold table. An address on both lists is treated
// as blacklisted; the blacklist check deliberately runs first.
func (e *Engine) Assess(chain Chain, toAddress string, amount float64, m Membership) Assessment {
	if m.Blacklisted {
		return Assessment{
			Score:       maxScore,
			Level:       LevelBlocked,
			Decision:    DecisionBlock,
			ReasonCodes: []string{ReasonBlacklistHit},
			Votes:       votesFor(maxScore),
		}
	}

	var reasons []string
	score := baseScore
	if m.Whitelisted {
		score = whitelistBaseScore
		reasons = append(reasons, ReasonWhitelistHit)
	}

	switch {
	case amount >= largeAmount:
		score += largeSurcharge
		reasons = append(reasons, ReasonLargeAmount)
	case amount >= mediumLargeAmount:
		score += mediumLargeSurcharge
		reasons = append(reasons, ReasonMediumLargeAmount)
	}

	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}

	level, decision := e.levelFor(score)
	if len(reasons) == 0 {
		reasons = append(reasons, ReasonNoSignificantRisk)
	}

	return Assessment{
		Score:       score,
		Level:       level,
		Decision:    decision,
		ReasonCodes: reasons,
		Votes:       votesFor(score),
	}
}

// levelFor maps a clamped score through the threshold table.
func (e *Engine) levelFor(score int) (RiskLevel, Decision) {
	switch {
	case score >= e.thresholds.BlockMin:
		return LevelBlocked, DecisionBlock
	case score >= e.thresholds.ConfirmMin:
		return LevelHigh, DecisionRequireConfirm
	case score >= mediumLevelMin:
		return LevelMedium, DecisionAllow
	default:
		return LevelLow, DecisionAllow
	}
}

// Detector component names for advisory votes.
const (
	voteIsolationForest = "isolation_forest"
	voteXGBoost         = "xgboost"
	voteGNN             = "gnn"
)

// votesFor derives the advisory per-detector sub-scores from the final
// score. The components are not independent models here; they exist so
// dashboards have a stable shape to render and are fully determined by the
// score.
func votesFor(score int) map[string]Vote {
	norm := float64(score) / 100
	return map[string]Vote{
		voteIsolationForest: {Triggered: score >= 70, Score: norm},
		voteXGBoost:         {Triggered: score >= 80, Score: math.Min(0.99, norm)},
		voteGNN:             {Triggered: score >= 90, Score: math.Min(1.0, norm)},
	}
}

// VoteNames returns the detector component names in stable order.
func VoteNames() []string {
	names := []string{voteIsolationForest, voteXGBoost, voteGNN}
	sort.Strings(names)
	return names
}
