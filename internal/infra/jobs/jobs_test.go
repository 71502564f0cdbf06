package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eduguardian/guardian/internal/infra/jobs"
)

type recordingSweeper struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (r *recordingSweeper) SweepCooldowns(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, before)
	return 2, r.err
}

func (r *recordingSweeper) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func TestSweepCooldowns_Cutoff(t *testing.T) {
	s := &recordingSweeper{}
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	n, err := jobs.SweepCooldowns(context.Background(), s, now, 5*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d", n)
	}
	if want := now.Add(-10 * time.Minute); !s.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", s.cutoffs[0], want)
	}
}

func TestSweepCooldowns_Error(t *testing.T) {
	s := &recordingSweeper{err: errors.New("db locked")}
	if _, err := jobs.SweepCooldowns(context.Background(), s, time.Now(), time.Minute); err == nil {
		t.Error("expected error")
	}
}

func TestRunner_RunsScheduledSweep(t *testing.T) {
	r, err := jobs.New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s := &recordingSweeper{}
	if err := r.ScheduleCooldownSweep(s, 20*time.Millisecond, time.Minute); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if r.Jobs() != 1 {
		t.Errorf("jobs = %d", r.Jobs())
	}

	r.Start()
	deadline := time.Now().Add(2 * time.Second)
	for s.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := r.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if s.calls() == 0 {
		t.Error("sweep never ran")
	}
}
