// Package domain holds the pure progression types shared by every layer.
// The engine drives study motivation through XP, levels, streaks, badges
// and a daily cap on AI feature usage.
package domain

import (
	"slices"
	"time"
)

// ─── User Aggregate ─────────────────────────────────────────────────────────

// User is the aggregate root. Badges, XP and streak are mutated only by the
// progression engine; everything else reads it.
type User struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	XP        int64         `json:"xp"`
	Level     int           `json:"level"`
	Streak    Streak        `json:"streak"`
	AIUsage   AIUsage       `json:"ai_usage"`
	Badges    []EarnedBadge `json:"badges"`
	Favorites []string      `json:"favorite_notes"`
	Stats     Stats         `json:"stats"`
	Version   int64         `json:"-"` // optimistic concurrency token
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so a transition can be computed without touching
// the loaded state.
func (u *User) Clone() *User {
	c := *u
	c.Badges = slices.Clone(u.Badges)
	c.Favorites = slices.Clone(u.Favorites)
	c.Stats.Subjects = slices.Clone(u.Stats.Subjects)
	return &c
}

// HasBadge reports whether the badge was already earned.
func (u *User) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b.BadgeID == id {
			return true
		}
	}
	return false
}

// IsFavorite reports whether the note is in the user's favorites.
func (u *User) IsFavorite(noteID string) bool {
	return slices.Contains(u.Favorites, noteID)
}

// ─── Streak ─────────────────────────────────────────────────────────────────

// Streak tracks consecutive calendar days with a completed study session.
type Streak struct {
	Current      int       `json:"current"`
	Longest      int       `json:"longest"`
	LastActivity time.Time `json:"last_activity_date"`
}

// ─── AI Usage Quota ─────────────────────────────────────────────────────────

// Feature identifies a quota-limited AI feature.
type Feature string

const (
	FeatureSummary   Feature = "summary"
	FeatureFlashcard Feature = "flashcard"
)

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	return f == FeatureSummary || f == FeatureFlashcard
}

// AIUsage counts AI generations inside the current rolling window.
type AIUsage struct {
	SummaryUsed   int       `json:"summary_used"`
	FlashcardUsed int       `json:"flashcard_used"`
	LastReset     time.Time `json:"last_reset"`
}

// Used returns the counter for a feature.
func (a AIUsage) Used(f Feature) int {
	if f == FeatureFlashcard {
		return a.FlashcardUsed
	}
	return a.SummaryUsed
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// EarnedBadge records when a badge was awarded. BadgeID is unique per user.
type EarnedBadge struct {
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// ─── Statistics ─────────────────────────────────────────────────────────────

// Stats is the counter snapshot badge criteria are evaluated against.
type Stats struct {
	NotesUploaded      int64    `json:"notes_uploaded"`
	Subjects           []string `json:"subjects"` // distinct, sorted
	RatingsReceived    int64    `json:"ratings_received"`
	PositiveRatings    int64    `json:"positive_ratings"`
	StudySessions      int64    `json:"study_sessions"`
	StudySeconds       int64    `json:"study_seconds"`
	FlashcardsReviewed int64    `json:"flashcards_reviewed"`
	SummariesGenerated int64    `json:"summaries_generated"`
	FlashcardSetsMade  int64    `json:"flashcard_sets_generated"`
}

// AddSubject records a subject, keeping the list sorted and distinct.
// Reports whether the subject was new.
func (s *Stats) AddSubject(subject string) bool {
	if subject == "" {
		return false
	}
	i, found := slices.BinarySearch(s.Subjects, subject)
	if found {
		return false
	}
	s.Subjects = slices.Insert(s.Subjects, i, subject)
	return true
}

// ─── Activity Log ───────────────────────────────────────────────────────────

// ActivityType categorizes an activity-log entry.
type ActivityType string

const (
	ActivityStudy        ActivityType = "study_completed"
	ActivityUpload       ActivityType = "note_uploaded"
	ActivityAISummary    ActivityType = "ai_summary"
	ActivityAIFlashcards ActivityType = "ai_flashcards"
	ActivityRating       ActivityType = "rating_received"
)

// ActivityEntry is one append-only log line.
type ActivityEntry struct {
	ID          int64        `json:"id"`
	UserID      string       `json:"user_id"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	XPEarned    int64        `json:"xp_earned"`
	CreatedAt   time.Time    `json:"timestamp"`
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
}
