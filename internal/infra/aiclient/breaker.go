package aiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/infra/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// Circuit Breaker
// ═══════════════════════════════════════════════════════════════════════════
//
//   - CLOSED  (normal) → consecutive failures reach threshold → OPEN
//   - OPEN    (rejecting) → after ResetTimeout → HALF_OPEN
//   - HALF_OPEN (probing) → HalfOpenMax successes → CLOSED, any failure → OPEN

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns a human-readable breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned while the AI service is considered down.
var ErrCircuitOpen = errors.New("ai circuit breaker open")

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // failures to trip (default 5)
	ResetTimeout     time.Duration // time in OPEN before probing (default 30s)
	HalfOpenMax      int           // successful probes needed to close (default 2)
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      2,
	}
}

// Breaker guards an AIGenerator. Thread-safe for concurrent use.
type Breaker struct {
	gen domain.AIGenerator

	mu        sync.Mutex
	cfg       BreakerConfig
	state     BreakerState
	failures  int
	successes int
	trippedAt time.Time
	trips     int
	now       func() time.Time
}

var _ domain.AIGenerator = (*Breaker)(nil)

// NewBreaker wraps gen with a circuit breaker.
func NewBreaker(gen domain.AIGenerator, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = def.HalfOpenMax
	}
	return &Breaker{gen: gen, cfg: cfg, now: time.Now}
}

// Ready reports whether a generation would be attempted right now.
// Callers use it to skip spending quota while the service is down.
func (b *Breaker) Ready() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked()
}

// State returns the current state, moving OPEN to HALF_OPEN once the reset
// timeout has passed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

// Trips returns how many times the breaker has opened.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

func (b *Breaker) Summarize(ctx context.Context, noteID string) (domain.Summary, error) {
	var out domain.Summary
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.gen.Summarize(ctx, noteID)
		return err
	})
	return out, err
}

func (b *Breaker) GenerateFlashcards(ctx context.Context, noteID string) ([]domain.Flashcard, error) {
	var out []domain.Flashcard
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.gen.GenerateFlashcards(ctx, noteID)
		return err
	})
	return out, err
}

func (b *Breaker) do(ctx context.Context, call func(context.Context) error) error {
	if err := b.Ready(); err != nil {
		return err
	}
	err := call(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.successLocked()
	case ctx.Err() != nil:
		// Caller gave up; says nothing about the service.
	default:
		b.failureLocked()
	}
	return err
}

func (b *Breaker) advanceLocked() {
	if b.state == BreakerOpen && b.now().Sub(b.trippedAt) >= b.cfg.ResetTimeout {
		b.setLocked(BreakerHalfOpen)
		b.successes = 0
	}
}

func (b *Breaker) allowLocked() error {
	b.advanceLocked()
	if b.state == BreakerOpen {
		return fmt.Errorf("%w (retry after %s)", ErrCircuitOpen,
			b.cfg.ResetTimeout-b.now().Sub(b.trippedAt))
	}
	return nil
}

func (b *Breaker) successLocked() {
	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenMax {
			b.setLocked(BreakerClosed)
			b.failures = 0
			b.successes = 0
		}
	case BreakerClosed:
		b.failures = 0
	}
}

func (b *Breaker) failureLocked() {
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.tripLocked()
		}
	case BreakerHalfOpen:
		b.tripLocked()
	}
}

func (b *Breaker) tripLocked() {
	b.setLocked(BreakerOpen)
	b.trippedAt = b.now()
	b.trips++
}

func (b *Breaker) setLocked(s BreakerState) {
	b.state = s
	metrics.AIBreakerState.Set(float64(s))
}
