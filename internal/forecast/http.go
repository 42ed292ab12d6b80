package forecast

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantfold/probedge/internal/circuitbreaker"
	"github.com/quantfold/probedge/pkg/types"
)

// HTTPProviderConfig holds configuration for the model-server provider.
type HTTPProviderConfig struct {
	URL           string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	Breaker       *circuitbreaker.Breaker
	Logger        *zap.Logger
}

// HTTPProvider queries an external model server per point, throttled by
// a token-bucket limiter so backtests cannot flood the server. An
// optional breaker turns a sustained outage into fast failures instead
// of a full timeout per point.
type HTTPProvider struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
}

type predictRequest struct {
	EventID      string  `json:"event_id"`
	Timestamp    int64   `json:"timestamp"`
	ForecastProb float64 `json:"forecast_prob"`
	MarketMid    float64 `json:"market_mid"`
}

type predictResponse struct {
	Prob float64 `json:"prob"`
}

// NewHTTPProvider creates a rate-limited model-server provider.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPProvider{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    cfg.Breaker,
		logger:     cfg.Logger,
	}
}

// Predict asks the model server for this point's probability. With the
// breaker open the call fails as a source outage, which aborts the run
// rather than skipping event after event against a dead server.
func (p *HTTPProvider) Predict(ctx context.Context, eventID string, point types.AlignedPoint) (float64, error) {
	if p.breaker != nil && !p.breaker.Allow() {
		return 0, fmt.Errorf("model server circuit open: %w", types.ErrSourceUnavailable)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	body, err := json.Marshal(predictRequest{
		EventID:      eventID,
		Timestamp:    point.Timestamp,
		ForecastProb: point.ForecastProb,
		MarketMid:    point.MarketMid,
	})
	if err != nil {
		return 0, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordFailure()
		return 0, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		PredictErrorsTotal.Inc()
		p.recordFailure()
		return 0, fmt.Errorf("model server: status %d", resp.StatusCode)
	}

	var data predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		PredictErrorsTotal.Inc()
		p.recordFailure()
		return 0, fmt.Errorf("decode predict response: %w", err)
	}

	if math.IsNaN(data.Prob) || math.IsInf(data.Prob, 0) || data.Prob < 0 || data.Prob > 1 {
		PredictErrorsTotal.Inc()
		p.recordFailure()
		return 0, fmt.Errorf("model server: probability %g outside [0,1]", data.Prob)
	}

	PredictionsTotal.Inc()
	p.recordSuccess()

	return data.Prob, nil
}

func (p *HTTPProvider) recordSuccess() {
	if p.breaker != nil {
		p.breaker.RecordSuccess()
	}
}

func (p *HTTPProvider) recordFailure() {
	if p.breaker != nil {
		p.breaker.RecordFailure()
	}
}

// Name identifies the provider in run records and logs.
func (p *HTTPProvider) Name() string {
	return "http"
}
