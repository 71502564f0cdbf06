package domain

import "time"

// EventKind names the trigger a badge evaluation runs for.
type EventKind string

const (
	EventNoteUploaded   EventKind = "note_uploaded"
	EventAISummary      EventKind = "ai_summary_generated"
	EventAIFlashcards   EventKind = "ai_flashcards_generated"
	EventStudyCompleted EventKind = "complete_study"
	EventRatingReceived EventKind = "rating_received"
)

// Event is a closed union of the triggers the engine understands.
// Each variant carries only what its criteria read.
type Event interface {
	Kind() EventKind
	isEvent()
}

// UploadEvent: the notes service stored a new note for the user.
type UploadEvent struct {
	NoteID  string `json:"note_id"`
	Subject string `json:"subject"`
}

func (UploadEvent) Kind() EventKind { return EventNoteUploaded }
func (UploadEvent) isEvent()        {}

// AIUsageEvent: an AI generation for a note succeeded.
type AIUsageEvent struct {
	NoteID  string  `json:"note_id"`
	Feature Feature `json:"feature"`
}

func (e AIUsageEvent) Kind() EventKind {
	if e.Feature == FeatureFlashcard {
		return EventAIFlashcards
	}
	return EventAISummary
}
func (AIUsageEvent) isEvent() {}

// StudyCompletionEvent: the user finished studying a note.
type StudyCompletionEvent struct {
	NoteID             string        `json:"note_id"`
	Duration           time.Duration `json:"duration"`
	Subject            string        `json:"subject,omitempty"`
	Topic              string        `json:"topic,omitempty"`
	FlashcardsReviewed int           `json:"flashcards_reviewed,omitempty"`
}

func (StudyCompletionEvent) Kind() EventKind { return EventStudyCompleted }
func (StudyCompletionEvent) isEvent()        {}

// RatingEvent: another user rated one of the user's notes.
type RatingEvent struct {
	NoteID  string `json:"note_id"`
	RaterID string `json:"rater_id"`
	Score   int    `json:"score"` // 1..5
}

// Positive reports whether the rating counts toward positive-rating badges.
func (e RatingEvent) Positive() bool { return e.Score >= 4 }

func (RatingEvent) Kind() EventKind { return EventRatingReceived }
func (RatingEvent) isEvent()        {}
