package progression

import (
	"time"

	"github.com/eduguardian/guardian/internal/domain"
)

// ─── Badge Criteria ─────────────────────────────────────────────────────────
// Criteria are pure predicates over a user snapshot and the triggering event.
// They never mutate anything, so re-evaluating them is always safe.

// EvalContext is what a criterion sees. PendingXP is XP already earned by the
// current transition but not yet applied; level criteria count it.
type EvalContext struct {
	User      *domain.User
	Event     domain.Event
	PendingXP int64
}

// Criterion decides whether a badge is earned.
type Criterion interface {
	Met(c EvalContext) bool
}

// CriterionFunc adapts a plain function.
type CriterionFunc func(c EvalContext) bool

func (f CriterionFunc) Met(c EvalContext) bool { return f(c) }

// StatKey names a counter criteria can threshold on.
type StatKey string

const (
	StatNotesUploaded      StatKey = "notes_uploaded"
	StatDistinctSubjects   StatKey = "distinct_subjects"
	StatRatingsReceived    StatKey = "ratings_received"
	StatPositiveRatings    StatKey = "positive_ratings"
	StatStudySessions      StatKey = "study_sessions"
	StatStudyMinutes       StatKey = "study_minutes"
	StatFlashcardsReviewed StatKey = "flashcards_reviewed"
	StatSummaries          StatKey = "summaries_generated"
	StatFlashcardSets      StatKey = "flashcard_sets_generated"
	StatAIGenerations      StatKey = "ai_generations"
	StatCurrentStreak      StatKey = "current_streak"
	StatLongestStreak      StatKey = "longest_streak"
	StatXP                 StatKey = "xp"
	StatLevel              StatKey = "level"
)

// Value reads the stat from an evaluation context.
func (k StatKey) Value(c EvalContext) int64 {
	u := c.User
	s := u.Stats
	switch k {
	case StatNotesUploaded:
		return s.NotesUploaded
	case StatDistinctSubjects:
		return int64(len(s.Subjects))
	case StatRatingsReceived:
		return s.RatingsReceived
	case StatPositiveRatings:
		return s.PositiveRatings
	case StatStudySessions:
		return s.StudySessions
	case StatStudyMinutes:
		return s.StudySeconds / 60
	case StatFlashcardsReviewed:
		return s.FlashcardsReviewed
	case StatSummaries:
		return s.SummariesGenerated
	case StatFlashcardSets:
		return s.FlashcardSetsMade
	case StatAIGenerations:
		return s.SummariesGenerated + s.FlashcardSetsMade
	case StatCurrentStreak:
		return int64(u.Streak.Current)
	case StatLongestStreak:
		return int64(u.Streak.Longest)
	case StatXP:
		return u.XP + c.PendingXP
	case StatLevel:
		return int64(LevelForXP(u.XP + c.PendingXP))
	}
	return 0
}

// StatAtLeast is a threshold counter: met once Stat >= Min.
type StatAtLeast struct {
	Stat StatKey
	Min  int64
}

func (s StatAtLeast) Met(c EvalContext) bool { return s.Stat.Value(c) >= s.Min }

// SessionAtLeast is met by a single study completion lasting at least Duration.
type SessionAtLeast struct {
	Duration time.Duration
}

func (s SessionAtLeast) Met(c EvalContext) bool {
	ev, ok := c.Event.(domain.StudyCompletionEvent)
	return ok && ev.Duration >= s.Duration
}

// FlashcardsInSession is met by a single study completion reviewing at least
// Min flashcards.
type FlashcardsInSession struct {
	Min int
}

func (f FlashcardsInSession) Met(c EvalContext) bool {
	ev, ok := c.Event.(domain.StudyCompletionEvent)
	return ok && ev.FlashcardsReviewed >= f.Min
}

// OnEvent restricts a criterion to one trigger kind.
type OnEvent struct {
	Kind domain.EventKind
	Then Criterion
}

func (o OnEvent) Met(c EvalContext) bool {
	return c.Event != nil && c.Event.Kind() == o.Kind && o.Then.Met(c)
}

// AllOf is met when every member is.
type AllOf []Criterion

func (a AllOf) Met(c EvalContext) bool {
	for _, cr := range a {
		if !cr.Met(c) {
			return false
		}
	}
	return true
}
