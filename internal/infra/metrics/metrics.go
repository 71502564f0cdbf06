// Package metrics provides Prometheus metrics for EduGuardian: study
// completions, XP, badges, AI quota decisions, persistence and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Progression ────────────────────────────────────────────────────────────

// StudyCompletions counts completeStudy outcomes: credited, throttled, failed.
var StudyCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "study_completions_total",
	Help:      "Study completions by outcome.",
}, []string{"outcome"})

// XPAwarded counts XP credited by source (study, upload, ai, rating, badge).
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "xp_awarded_total",
	Help:      "Total XP credited.",
}, []string{"source"})

// BadgesAwarded counts badge awards by badge ID.
var BadgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "badges_awarded_total",
	Help:      "Total badges awarded.",
}, []string{"badge"})

// LevelUps counts level-up transitions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "level_ups_total",
	Help:      "Total level-up transitions.",
})

// ─── AI Quota ───────────────────────────────────────────────────────────────

// QuotaDecisions counts quota checks by feature and result (allowed, denied).
var QuotaDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "ai_quota_decisions_total",
	Help:      "AI quota checks by feature and result.",
}, []string{"feature", "result"})

// AIGenerationLatency tracks external AI call duration in seconds.
var AIGenerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "eduguardian",
	Name:      "ai_generation_latency_seconds",
	Help:      "External AI generation duration in seconds.",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"feature"})

// ─── Persistence ────────────────────────────────────────────────────────────

// CommitLatency tracks transition commit duration in seconds.
var CommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "eduguardian",
	Name:      "commit_latency_seconds",
	Help:      "User transition commit duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
})

// CommitConflicts counts optimistic version conflicts that forced a retry.
var CommitConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "commit_conflicts_total",
	Help:      "Version conflicts retried during commit.",
})

// CooldownsSwept counts expired cooldown rows removed by the sweeper job.
var CooldownsSwept = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "cooldowns_swept_total",
	Help:      "Expired study cooldown records removed.",
})

// AIBreakerState reports the AI client circuit breaker (0 closed, 1 open,
// 2 half-open).
var AIBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "eduguardian",
	Name:      "ai_breaker_state",
	Help:      "AI client circuit breaker state (0=closed, 1=open, 2=half-open).",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus reports per-check status (1 healthy, 0 unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "eduguardian",
	Name:      "health_check_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries counts recovery attempts by check and result.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "eduguardian",
	Name:      "health_recoveries_total",
	Help:      "Health recovery attempts.",
}, []string{"check", "result"})
