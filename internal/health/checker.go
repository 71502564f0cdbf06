// Package health provides periodic health checks with auto-recovery for the
// database, the shared lock store, the data directory and the badge catalog.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/infra/logger"
	"github.com/eduguardian/guardian/internal/infra/metrics"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	Recovered bool      `json:"recovered,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *logger.Logger
}

// NewChecker creates a checker with no checks registered.
func NewChecker(interval time.Duration, log *logger.Logger) *Checker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{interval: interval, log: log.With("component", "health")}
}

// Add registers a check. Not safe to call once Run has started.
func (c *Checker) Add(checks ...Check) *Checker {
	c.checks = append(c.checks, checks...)
	return c
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once. A failing check gets one recovery attempt
// and is re-checked after it.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}
		err := check.CheckFn(ctx)
		if err != nil && check.RecoverFn != nil {
			if rerr := check.RecoverFn(ctx); rerr != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name, "failed").Inc()
				c.log.Warn("recovery failed", "check", check.Name, "error", rerr)
			} else {
				metrics.HealthRecoveries.WithLabelValues(check.Name, "success").Inc()
				if err = check.CheckFn(ctx); err == nil {
					s.Recovered = true
				}
			}
		}
		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			c.log.Warn("health check failed", "check", check.Name, "error", err)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// Pinger is anything with a context-aware connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger with a short timeout.
func PingCheck(name string, p Pinger) Check {
	return Check{
		Name: name,
		CheckFn: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return p.Ping(ctx)
		},
	}
}

// DataDirCheck verifies the data directory exists and is a directory.
func DataDirCheck(dir string) Check {
	return Check{
		Name: "data_dir",
		CheckFn: func(ctx context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("check data dir: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			return nil
		},
		RecoverFn: func(ctx context.Context) error {
			return os.MkdirAll(dir, 0700)
		},
	}
}

// CatalogStore reads and rewrites the persisted badge catalog.
type CatalogStore interface {
	ListCatalog(ctx context.Context) ([]domain.BadgeDef, error)
	SyncCatalog(ctx context.Context, defs []domain.BadgeDef) error
}

// CatalogCheck verifies the persisted catalog matches the shipped one and
// resyncs it when it drifts.
func CatalogCheck(store CatalogStore, want []domain.BadgeDef) Check {
	return Check{
		Name: "badge_catalog",
		CheckFn: func(ctx context.Context) error {
			got, err := store.ListCatalog(ctx)
			if err != nil {
				return fmt.Errorf("list catalog: %w", err)
			}
			if len(got) != len(want) {
				return fmt.Errorf("catalog has %d badges, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					return fmt.Errorf("catalog drift at %s", want[i].ID)
				}
			}
			return nil
		},
		RecoverFn: func(ctx context.Context) error {
			return store.SyncCatalog(ctx, want)
		},
	}
}
