package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestProgressionMetrics(t *testing.T) {
	StudyCompletions.WithLabelValues("credited").Inc()
	XPAwarded.WithLabelValues("study").Add(100)
	BadgesAwarded.WithLabelValues("first_study").Inc()
	LevelUps.Inc()

	names := gatheredNames(t)
	expected := []string{
		"eduguardian_study_completions_total",
		"eduguardian_xp_awarded_total",
		"eduguardian_badges_awarded_total",
		"eduguardian_level_ups_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestQuotaAndPersistenceMetrics(t *testing.T) {
	QuotaDecisions.WithLabelValues("summary", "denied").Inc()
	AIGenerationLatency.WithLabelValues("summary").Observe(0.8)
	CommitLatency.Observe(0.004)
	CommitConflicts.Inc()
	CooldownsSwept.Add(3)
	AIBreakerState.Set(1)

	names := gatheredNames(t)
	expected := []string{
		"eduguardian_ai_quota_decisions_total",
		"eduguardian_ai_generation_latency_seconds",
		"eduguardian_commit_latency_seconds",
		"eduguardian_commit_conflicts_total",
		"eduguardian_cooldowns_swept_total",
		"eduguardian_ai_breaker_state",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("database").Set(1)
	HealthRecoveries.WithLabelValues("redis", "success").Inc()

	names := gatheredNames(t)
	for _, name := range []string{"eduguardian_health_check_status", "eduguardian_health_recoveries_total"} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
