package progression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/infra/logger"
	"github.com/eduguardian/guardian/internal/infra/metrics"
)

// AIService runs quota-gated AI generation for notes:
// consume quota, call the generator, then record usage for badges.
// A failed generation refunds the quota it reserved.
type AIService struct {
	engine *Engine
	gen    domain.AIGenerator
	log    *logger.Logger
}

// NewAIService creates an AI service.
func NewAIService(engine *Engine, gen domain.AIGenerator, log *logger.Logger) *AIService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AIService{engine: engine, gen: gen, log: log.With("component", "ai")}
}

// readiness is implemented by generators that can refuse work up front.
type readiness interface {
	Ready() error
}

// SummaryResult is the outcome of Summarize. When Quota.Allowed is false
// nothing was generated.
type SummaryResult struct {
	Quota   QuotaResult
	Summary domain.Summary
	Outcome Outcome
}

// FlashcardResult is the outcome of GenerateFlashcards.
type FlashcardResult struct {
	Quota      QuotaResult
	Flashcards []domain.Flashcard
	Outcome    Outcome
}

// Summarize generates a summary for a note if the user has quota left.
func (s *AIService) Summarize(ctx context.Context, userID, noteID string) (SummaryResult, error) {
	var res SummaryResult
	q, out, err := s.generate(ctx, userID, noteID, domain.FeatureSummary, func(ctx context.Context) error {
		sum, err := s.gen.Summarize(ctx, noteID)
		res.Summary = sum
		return err
	})
	res.Quota, res.Outcome = q, out
	return res, err
}

// GenerateFlashcards generates a flashcard set for a note if the user has
// quota left.
func (s *AIService) GenerateFlashcards(ctx context.Context, userID, noteID string) (FlashcardResult, error) {
	var res FlashcardResult
	q, out, err := s.generate(ctx, userID, noteID, domain.FeatureFlashcard, func(ctx context.Context) error {
		cards, err := s.gen.GenerateFlashcards(ctx, noteID)
		res.Flashcards = cards
		return err
	})
	res.Quota, res.Outcome = q, out
	return res, err
}

func (s *AIService) generate(ctx context.Context, userID, noteID string, f domain.Feature, call func(context.Context) error) (QuotaResult, Outcome, error) {
	if strings.TrimSpace(noteID) == "" {
		return QuotaResult{}, Outcome{}, domain.Invalid("noteId", "required")
	}

	// A generator that already knows it will fail is not worth a quota unit.
	if r, ok := s.gen.(readiness); ok {
		if err := r.Ready(); err != nil {
			return QuotaResult{}, Outcome{}, fmt.Errorf("%w: %w", domain.ErrAIUnavailable, err)
		}
	}

	q, err := s.engine.ConsumeQuota(ctx, userID, f)
	if err != nil {
		return QuotaResult{}, Outcome{}, err
	}
	if !q.Allowed {
		return q, Outcome{}, nil
	}

	start := time.Now()
	err = call(ctx)
	metrics.AIGenerationLatency.WithLabelValues(string(f)).Observe(time.Since(start).Seconds())
	if err != nil {
		refunded, rerr := s.engine.RefundQuota(ctx, userID, f)
		if rerr != nil {
			s.log.Error("quota refund failed", "user_id", userID, "feature", f, "error", rerr)
		} else if refunded {
			q.Remaining++
		}
		return q, Outcome{}, fmt.Errorf("%w: %w", domain.ErrAIUnavailable, err)
	}

	// The generated content is returned even if recording usage fails; the
	// user already spent quota on it.
	out, err := s.engine.RecordAIUsage(ctx, userID, domain.AIUsageEvent{NoteID: noteID, Feature: f})
	if err != nil {
		s.log.Warn("ai usage not recorded", "user_id", userID, "note_id", noteID, "feature", f, "error", err)
	}
	return q, out, nil
}
