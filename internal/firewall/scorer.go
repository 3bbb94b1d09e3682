package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/walletguard/walletguard/internal/circuitbreaker"
	"github.com/walletguard/walletguard/internal/metrics"
	"github.com/walletguard/walletguard/internal/retry"
)

// FeatureDim is the feature vector length the AML model was trained on.
const FeatureDim = 165

// Prediction is a model scorer's verdict on a feature vector.
type Prediction struct {
	Label     string  `json:"prediction"` // "illicit" or "licit"
	RiskScore float64 `json:"risk_score"` // probability in [0, 1]
}

// Scorer is the optional statistical scoring capability. The rule engine
// never depends on it; when no scorer is configured the rule-only path is
// the whole firewall.
type Scorer interface {
	Predict(ctx context.Context, features []float64) (*Prediction, error)
}

// HTTPScorer calls an external model service over HTTP. Transient failures
// are retried once; repeated failures trip a circuit breaker so a dead model
// service doesn't add latency to every predict call.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	attempts   int
}

const scorerBreakerKey = "model_scorer"

// NewHTTPScorer creates a scorer client for the model service at baseURL.
func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker:  circuitbreaker.New(5, 30*time.Second),
		attempts: 2,
	}
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

// Predict posts the feature vector to the model service. Transport and
// server failures surface as ErrScorerUnavailable so callers can degrade to
// the rule-only path without inspecting the cause.
func (s *HTTPScorer) Predict(ctx context.Context, features []float64) (*Prediction, error) {
	if !s.breaker.Allow(scorerBreakerKey) {
		metrics.ScorerRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: circuit open", ErrScorerUnavailable)
	}

	body, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}

	var pred Prediction
	err = retry.Do(ctx, s.attempts, 200*time.Millisecond, func() error {
		return s.predictOnce(ctx, body, &pred)
	})
	if err != nil {
		s.breaker.RecordFailure(scorerBreakerKey)
		metrics.ScorerRequestsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, ErrScorerUnavailable) {
			err = fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
		}
		return nil, err
	}

	s.breaker.RecordSuccess(scorerBreakerKey)
	metrics.ScorerRequestsTotal.WithLabelValues("ok").Inc()
	return &pred, nil
}

func (s *HTTPScorer) predictOnce(ctx context.Context, body []byte, pred *Prediction) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("%w: create request: %v", ErrScorerUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrScorerUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		wrapped := fmt.Errorf("%w: model service returned %d", ErrScorerUnavailable, resp.StatusCode)
		if resp.StatusCode >= 500 {
			return wrapped // server errors are worth a retry
		}
		return retry.Permanent(wrapped)
	}

	if err := json.Unmarshal(respBody, pred); err != nil {
		return retry.Permanent(fmt.Errorf("%w: decode response: %v", ErrScorerUnavailable, err))
	}
	return nil
}
