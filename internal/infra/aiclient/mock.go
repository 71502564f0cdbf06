package aiclient

import (
	"context"
	"fmt"

	"github.com/eduguardian/guardian/internal/domain"
)

// ─── Mock Generator (for running without an AI service) ─────────────────────

// Mock implements domain.AIGenerator with canned, deterministic content.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Summarize(ctx context.Context, noteID string) (domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{
		NoteID: noteID,
		Text:   fmt.Sprintf("Summary of note %s: key ideas, definitions and worked examples.", noteID),
	}, nil
}

func (m *Mock) GenerateFlashcards(ctx context.Context, noteID string) ([]domain.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cards := make([]domain.Flashcard, 3)
	for i := range cards {
		cards[i] = domain.Flashcard{
			Front: fmt.Sprintf("Question %d about note %s", i+1, noteID),
			Back:  fmt.Sprintf("Answer %d", i+1),
		}
	}
	return cards, nil
}
