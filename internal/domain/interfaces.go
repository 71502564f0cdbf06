package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// External collaborators the engine treats as black boxes.

// AIGenerator produces study material for a note (external LLM service).
type AIGenerator interface {
	Summarize(ctx context.Context, noteID string) (Summary, error)
	GenerateFlashcards(ctx context.Context, noteID string) ([]Flashcard, error)
}

// Summary is the generated summary of a note.
type Summary struct {
	NoteID string `json:"note_id"`
	Text   string `json:"text"`
}

// Flashcard is one generated question/answer pair.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// ProgressStore persists the user aggregate. Implemented by infra/sqlite.DB.
type ProgressStore interface {
	CreateUser(ctx context.Context, u *User) error
	LoadUser(ctx context.Context, id string) (*User, error)

	// LastCompletion returns when the note last earned study credit
	// (zero time if never).
	LastCompletion(ctx context.Context, userID, noteID string) (time.Time, error)

	// Commit applies a whole transition atomically or not at all.
	// Returns ErrVersionConflict if the user changed since it was loaded and
	// ErrCooldownActive if the cooldown mark lost a race and
	// ErrDuplicateEvent if an upload or rating mark was already recorded.
	Commit(ctx context.Context, m Mutation) error

	ListActivity(ctx context.Context, userID string, limit int) ([]ActivityEntry, error)
	ClearActivity(ctx context.Context, userID string) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// Mutation is everything one transition writes. User carries the new state
// with Version still set to the version that was read.
type Mutation struct {
	User           *User
	NewBadges      []EarnedBadge
	Activity       *ActivityEntry
	Cooldown       *CooldownMark
	Upload         string // note id, credited once per user
	Rating         *RatingMark
	FavoriteAdd    string
	FavoriteRemove string
}

// CooldownMark records a credited completion. The write only succeeds if the
// previous completion for the pair is at or before NotAfter.
type CooldownMark struct {
	NoteID      string
	CompletedAt time.Time
	NotAfter    time.Time
}

// RatingMark records a rating. Each rater counts once per note.
type RatingMark struct {
	NoteID  string
	RaterID string
	Score   int
}
