package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default tuning for the model-server breaker. Five consecutive
// failures is well past any transient blip at backtest request rates.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker trips after a run of consecutive upstream failures and fails
// fast until a cooldown has elapsed. The first caller admitted after
// the cooldown acts as the probe: its outcome decides whether the
// breaker closes again or re-opens for another full cooldown.
type Breaker struct {
	name             string
	failureThreshold int
	cooldown         time.Duration
	logger           *zap.Logger

	mu          sync.Mutex
	state       state
	consecutive int
	openedAt    time.Time
	lastChange  time.Time
}

// Config holds circuit breaker configuration.
type Config struct {
	Name             string
	FailureThreshold int
	Cooldown         time.Duration
	Logger           *zap.Logger
}

// Status holds current circuit breaker status for debugging.
type Status struct {
	State               string
	ConsecutiveFailures int
	OpenedAt            time.Time
	LastChange          time.Time
}

// New creates a new circuit breaker with the given configuration.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}

	name := cfg.Name
	if name == "" {
		name = "upstream"
	}

	b := &Breaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		logger:           cfg.Logger,
		state:            stateClosed,
		lastChange:       time.Now(),
	}

	// Initialize metrics
	BreakerClosed.Set(1)
	BreakerConsecutiveFailures.Set(0)

	return b, nil
}

// Allow reports whether a request may go upstream right now. An open
// breaker admits exactly one probe per cooldown window.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			RejectedTotal.Inc()
			return false
		}
		b.transition(stateHalfOpen)
		b.logger.Info("circuit-breaker-half-open",
			zap.String("breaker", b.name),
			zap.Duration("cooldown", b.cooldown))
		return true
	default: // half-open, probe already in flight
		RejectedTotal.Inc()
		return false
	}
}

// RecordSuccess resets the failure run and closes the breaker if a
// probe just succeeded.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	BreakerConsecutiveFailures.Set(0)

	if b.state != stateClosed {
		b.transition(stateClosed)
		b.logger.Info("circuit-breaker-closed",
			zap.String("breaker", b.name))
	}
}

// RecordFailure counts one upstream failure. The breaker trips when the
// run reaches the threshold, and re-opens immediately on a failed probe.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	FailuresTotal.Inc()
	BreakerConsecutiveFailures.Set(float64(b.consecutive))

	switch {
	case b.state == stateHalfOpen:
		b.trip("probe-failed")
	case b.state == stateClosed && b.consecutive >= b.failureThreshold:
		b.trip("failure-threshold-reached")
	}
}

// trip must be called with the mutex held.
func (b *Breaker) trip(reason string) {
	b.openedAt = time.Now()
	b.transition(stateOpen)
	TripsTotal.Inc()

	b.logger.Warn("circuit-breaker-open",
		zap.String("breaker", b.name),
		zap.String("reason", reason),
		zap.Int("consecutive_failures", b.consecutive),
		zap.Duration("cooldown", b.cooldown))
}

// transition must be called with the mutex held.
func (b *Breaker) transition(next state) {
	b.state = next
	b.lastChange = time.Now()
	StateChangesTotal.Inc()
	if next == stateClosed {
		BreakerClosed.Set(1)
	} else {
		BreakerClosed.Set(0)
	}
}

// GetStatus returns current circuit breaker status for debugging.
func (b *Breaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutive,
		OpenedAt:            b.openedAt,
		LastChange:          b.lastChange,
	}
}
