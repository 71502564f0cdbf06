package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eduguardian/guardian/internal/app/progression"
	"github.com/eduguardian/guardian/internal/domain"
)

// ─── Users ──────────────────────────────────────────────────────────────────

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	u, err := s.engine.RegisterUser(r.Context(), progression.NewUser{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": u})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Profile(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": p})
}

// ─── Activity ───────────────────────────────────────────────────────────────

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	entries, err := s.activity.List(r.Context(), userID(r), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": entries})
}

func (s *Server) handleClearActivity(w http.ResponseWriter, r *http.Request) {
	n, err := s.activity.Clear(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]int64{"deleted": n},
	})
}

// ─── Study Completion ───────────────────────────────────────────────────────

// studyRequest carries the session duration in seconds, at most one day.
type studyRequest struct {
	NoteID             string `json:"noteId" validate:"required"`
	Duration           int64  `json:"duration" validate:"gte=0,lte=86400"`
	PointsEarned       *int64 `json:"pointsEarned" validate:"omitempty,gte=0"`
	Subject            string `json:"subject" validate:"max=100"`
	Topic              string `json:"topic" validate:"max=200"`
	FlashcardsReviewed int    `json:"flashcardsReviewed" validate:"gte=0"`
}

type studyResponse struct {
	XPEarned          int64             `json:"xpEarned"`
	TotalXP           int64             `json:"totalXp"`
	CurrentStreak     int               `json:"currentStreak"`
	LongestStreak     int               `json:"longestStreak"`
	Level             int               `json:"level"`
	LeveledUp         bool              `json:"leveledUp"`
	AwardedBadges     []domain.BadgeDef `json:"awardedBadges"`
	NewBadgeCount     int               `json:"newBadgeCount"`
	Throttled         bool              `json:"throttled"`
	RetryAfterSeconds int64             `json:"retryAfterSeconds,omitempty"`
}

func (s *Server) handleStudyComplete(w http.ResponseWriter, r *http.Request) {
	var req studyRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.engine.CompleteStudy(r.Context(), userID(r), progression.StudyCompletion{
		NoteID:             req.NoteID,
		Duration:           time.Duration(req.Duration) * time.Second,
		PointsEarned:       req.PointsEarned,
		Subject:            req.Subject,
		Topic:              req.Topic,
		FlashcardsReviewed: req.FlashcardsReviewed,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	badges := res.AwardedBadges
	if badges == nil {
		badges = []domain.BadgeDef{}
	}
	data := studyResponse{
		XPEarned:      res.XPEarned,
		TotalXP:       res.TotalXP,
		CurrentStreak: res.CurrentStreak,
		LongestStreak: res.LongestStreak,
		Level:         res.Level,
		LeveledUp:     res.LeveledUp,
		AwardedBadges: badges,
		NewBadgeCount: len(badges),
		Throttled:     res.Throttled,
	}
	if res.Throttled {
		secs := int64(math.Ceil(res.RetryAfter.Seconds()))
		data.RetryAfterSeconds = secs
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": res.Success, "data": data})
}

// ─── AI Generation ──────────────────────────────────────────────────────────

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	res, err := s.ai.Summarize(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !res.Quota.Allowed {
		writeQuotaExceeded(w, res.Quota)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"summary": res.Summary,
			"quota":   res.Quota,
			"outcome": res.Outcome,
		},
	})
}

func (s *Server) handleGenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	res, err := s.ai.GenerateFlashcards(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !res.Quota.Allowed {
		writeQuotaExceeded(w, res.Quota)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"flashcards": res.Flashcards,
			"quota":      res.Quota,
			"outcome":    res.Outcome,
		},
	})
}

func writeQuotaExceeded(w http.ResponseWriter, q progression.QuotaResult) {
	if !q.ResetAt.IsZero() {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(time.Until(q.ResetAt).Seconds())), 10))
	}
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error": map[string]interface{}{
			"type":      "quota_exceeded",
			"message":   fmt.Sprintf("daily %s limit of %d reached", q.Feature, q.Limit),
			"feature":   q.Feature,
			"remaining": q.Remaining,
			"reset_at":  q.ResetAt,
		},
	})
}

// ─── Favorites ──────────────────────────────────────────────────────────────

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := s.engine.ToggleFavorite(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]bool{"favorite": fav},
	})
}

// ─── Notes Service Events ───────────────────────────────────────────────────

type uploadRequest struct {
	UserID  string `json:"userId" validate:"required"`
	NoteID  string `json:"noteId" validate:"required"`
	Subject string `json:"subject" validate:"max=100"`
}

func (s *Server) handleNoteUploaded(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out, err := s.engine.RecordUpload(r.Context(), req.UserID, domain.UploadEvent{
		NoteID:  req.NoteID,
		Subject: req.Subject,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

type ratingRequest struct {
	OwnerID string `json:"ownerId" validate:"required"`
	RaterID string `json:"raterId" validate:"required"`
	NoteID  string `json:"noteId" validate:"required"`
	Score   int    `json:"score" validate:"required,min=1,max=5"`
}

func (s *Server) handleRatingReceived(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out, err := s.engine.RecordRating(r.Context(), req.OwnerID, domain.RatingEvent{
		NoteID:  req.NoteID,
		RaterID: req.RaterID,
		Score:   req.Score,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

// ─── Catalog & Leaderboard ──────────────────────────────────────────────────

type badgeView struct {
	domain.BadgeDef
	Holders int64 `json:"holders"`
}

func (s *Server) holders(r *http.Request) map[string]int64 {
	if s.badges == nil {
		return nil
	}
	h, err := s.badges.BadgeHolders(r.Context())
	if err != nil {
		s.log.Warn("badge holders unavailable", "error", err)
		return nil
	}
	return h
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	holders := s.holders(r)
	defs := s.engine.Catalog().Definitions()
	out := make([]badgeView, len(defs))
	for i, d := range defs {
		out[i] = badgeView{BadgeDef: d, Holders: holders[d.ID]}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

func (s *Server) handleGetBadge(w http.ResponseWriter, r *http.Request) {
	def, err := s.engine.Catalog().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    badgeView{BadgeDef: def, Holders: s.holders(r)[def.ID]},
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	// Concurrent reads for the same limit share one query.
	v, err, _ := s.board.Do(strconv.Itoa(limit), func() (interface{}, error) {
		return s.engine.Leaderboard(context.WithoutCancel(r.Context()), limit)
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": v})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(key, "must be an integer")
	}
	return n, nil
}
