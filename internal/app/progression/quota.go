package progression

import (
	"time"

	"github.com/eduguardian/guardian/internal/domain"
)

// QuotaLimits are the per-window caps for each AI feature.
type QuotaLimits struct {
	Summary   int
	Flashcard int
	Window    time.Duration
}

// DefaultQuotaLimits allows 5 of each feature per 24h.
func DefaultQuotaLimits() QuotaLimits {
	return QuotaLimits{Summary: 5, Flashcard: 5, Window: 24 * time.Hour}
}

// Limit returns the cap for a feature.
func (l QuotaLimits) Limit(f domain.Feature) int {
	if f == domain.FeatureFlashcard {
		return l.Flashcard
	}
	return l.Summary
}

// QuotaResult is the outcome of a quota check.
type QuotaResult struct {
	Feature   domain.Feature `json:"feature"`
	Allowed   bool           `json:"allowed"`
	Remaining int            `json:"remaining"`
	Limit     int            `json:"limit"`
	ResetAt   time.Time      `json:"reset_at"`
}

// QuotaTracker enforces the daily AI usage caps. Exhaustion is a result,
// never an error.
type QuotaTracker struct {
	limits QuotaLimits
}

// NewQuotaTracker creates a tracker for the given limits.
func NewQuotaTracker(limits QuotaLimits) QuotaTracker {
	if limits.Window <= 0 {
		limits.Window = 24 * time.Hour
	}
	return QuotaTracker{limits: limits}
}

// Limits returns the configured caps.
func (q QuotaTracker) Limits() QuotaLimits { return q.limits }

// current returns the usage as it stands at now, with the window rolled over
// if it has expired. The user is not touched.
func (q QuotaTracker) current(u *domain.User, now time.Time) domain.AIUsage {
	usage := u.AIUsage
	if usage.LastReset.IsZero() || now.Sub(usage.LastReset) >= q.limits.Window {
		usage = domain.AIUsage{LastReset: now}
	}
	return usage
}

// CheckAndConsume takes one unit of the feature's quota if any is left.
// The user's AIUsage is mutated only when the request is allowed.
func (q QuotaTracker) CheckAndConsume(u *domain.User, f domain.Feature, now time.Time) QuotaResult {
	usage := q.current(u, now)
	limit := q.limits.Limit(f)
	res := QuotaResult{Feature: f, Limit: limit, ResetAt: usage.LastReset.Add(q.limits.Window)}

	used := usage.Used(f)
	if used >= limit {
		return res
	}

	switch f {
	case domain.FeatureFlashcard:
		usage.FlashcardUsed++
	default:
		usage.SummaryUsed++
	}
	u.AIUsage = usage

	res.Allowed = true
	res.Remaining = limit - used - 1
	return res
}

// Peek reports the feature's remaining quota without consuming any.
func (q QuotaTracker) Peek(u *domain.User, f domain.Feature, now time.Time) QuotaResult {
	usage := q.current(u, now)
	limit := q.limits.Limit(f)
	remaining := max(limit-usage.Used(f), 0)
	return QuotaResult{
		Feature:   f,
		Allowed:   remaining > 0,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   usage.LastReset.Add(q.limits.Window),
	}
}

// Refund gives back one unit consumed earlier in the same window, for when
// the AI call it was reserved for failed. Reports whether anything changed.
// Counters never go below zero and a rolled-over window is left alone.
func (q QuotaTracker) Refund(u *domain.User, f domain.Feature, now time.Time) bool {
	usage := &u.AIUsage
	if usage.LastReset.IsZero() || now.Sub(usage.LastReset) >= q.limits.Window {
		return false
	}
	switch f {
	case domain.FeatureFlashcard:
		if usage.FlashcardUsed == 0 {
			return false
		}
		usage.FlashcardUsed--
	default:
		if usage.SummaryUsed == 0 {
			return false
		}
		usage.SummaryUsed--
	}
	return true
}
