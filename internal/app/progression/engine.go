// Package progression is the gamification engine: XP and levels, study
// streaks, badge awards, AI usage quotas and the study-completion
// orchestrator that ties them together.
//
// Every state change follows the same shape: lock the user, load, compute the
// whole transition on an in-memory copy, commit it in one store write. The
// components themselves never do I/O.
package progression

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/infra/logger"
	"github.com/eduguardian/guardian/internal/infra/metrics"
)

// Config holds the tunable rules of the engine.
type Config struct {
	StudyXP          int64         // base award per credited study completion
	MaxStudyXP       int64         // cap on caller-specified pointsEarned
	UploadXP         int64         // per uploaded note
	RatingXP         int64         // per positive rating received
	AIUsageXP        int64         // per successful AI generation
	MinStudyDuration time.Duration // reasonableness floor for a session
	MaxStudyDuration time.Duration // reasonableness ceiling for a session
	Cooldown         time.Duration // per (user, note) re-credit window
	Quota            QuotaLimits
	Location         *time.Location // calendar for streak days
	CommitRetries    int            // extra attempts after a version conflict
	WriteTimeout     time.Duration  // bound on each store write
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		StudyXP:          100,
		MaxStudyXP:       500,
		UploadXP:         20,
		RatingXP:         10,
		AIUsageXP:        5,
		MinStudyDuration: 30 * time.Second,
		MaxStudyDuration: 24 * time.Hour,
		Cooldown:         5 * time.Minute,
		Quota:            DefaultQuotaLimits(),
		Location:         time.UTC,
		CommitRetries:    3,
		WriteTimeout:     5 * time.Second,
	}
}

// Engine owns every write to the user aggregate.
type Engine struct {
	store     domain.ProgressStore
	cfg       Config
	catalog   *Catalog
	evaluator Evaluator
	streaks   StreakTracker
	quota     QuotaTracker
	locker    Locker
	log       *logger.Logger
	now       func() time.Time
}

// NewEngine creates an engine with the built-in badge catalog and an
// in-process per-user lock.
func NewEngine(store domain.ProgressStore, cfg Config, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	catalog := DefaultCatalog()
	return &Engine{
		store:     store,
		cfg:       cfg,
		catalog:   catalog,
		evaluator: NewEvaluator(catalog),
		streaks:   NewStreakTracker(cfg.Location),
		quota:     NewQuotaTracker(cfg.Quota),
		locker:    NewKeyedMutex(),
		log:       log.With("component", "progression"),
		now:       time.Now,
	}
}

// SetClock replaces the time source (for testing).
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SetLocker replaces the per-user lock, e.g. with a distributed one.
func (e *Engine) SetLocker(l Locker) { e.locker = l }

// SetCatalog replaces the badge catalog.
func (e *Engine) SetCatalog(c *Catalog) {
	e.catalog = c
	e.evaluator = NewEvaluator(c)
}

// Catalog returns the badge catalog in use.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Config returns the engine rules.
func (e *Engine) Config() Config { return e.cfg }

// ─── Results ────────────────────────────────────────────────────────────────

// StudyCompletion is the input of CompleteStudy.
type StudyCompletion struct {
	NoteID             string
	Duration           time.Duration
	PointsEarned       *int64 // optional caller-specified award
	Subject            string
	Topic              string
	FlashcardsReviewed int
}

// StudyResult is what CompleteStudy reports. A throttled call has
// Throttled set and carries the unchanged state.
type StudyResult struct {
	Success       bool
	Throttled     bool
	RetryAfter    time.Duration
	XPEarned      int64 // base + badge rewards
	BaseXP        int64
	BadgeXP       int64
	TotalXP       int64
	CurrentStreak int
	LongestStreak int
	Level         int
	LeveledUp     bool
	AwardedBadges []domain.BadgeDef
}

// Outcome is what the other XP-bearing events report.
type Outcome struct {
	Duplicate     bool              `json:"duplicate,omitempty"` // already recorded, nothing written
	XPEarned      int64             `json:"xp_earned"`
	TotalXP       int64             `json:"total_xp"`
	Level         int               `json:"level"`
	LeveledUp     bool              `json:"leveled_up"`
	AwardedBadges []domain.BadgeDef `json:"awarded_badges"`
}

// ─── Study Completion ───────────────────────────────────────────────────────

func (e *Engine) validateStudy(in StudyCompletion) error {
	if strings.TrimSpace(in.NoteID) == "" {
		return domain.Invalid("noteId", "required")
	}
	if in.Duration < e.cfg.MinStudyDuration {
		return domain.Invalid("duration", fmt.Sprintf("must be at least %s", e.cfg.MinStudyDuration))
	}
	if e.cfg.MaxStudyDuration > 0 && in.Duration > e.cfg.MaxStudyDuration {
		return domain.Invalid("duration", fmt.Sprintf("must be at most %s", e.cfg.MaxStudyDuration))
	}
	if in.PointsEarned != nil && *in.PointsEarned < 0 {
		return domain.Invalid("pointsEarned", "must not be negative")
	}
	if in.FlashcardsReviewed < 0 {
		return domain.Invalid("flashcardsReviewed", "must not be negative")
	}
	return nil
}

func (e *Engine) studyXP(in StudyCompletion) int64 {
	if in.PointsEarned == nil {
		return e.cfg.StudyXP
	}
	return min(*in.PointsEarned, e.cfg.MaxStudyXP)
}

// CompleteStudy credits a finished study session: streak, base XP, badges,
// activity entry and cooldown mark, all committed together. A repeat for the
// same note inside the cooldown is a throttled no-op, not an error.
func (e *Engine) CompleteStudy(ctx context.Context, userID string, in StudyCompletion) (StudyResult, error) {
	if err := e.validateStudy(in); err != nil {
		return StudyResult{}, err
	}

	var res StudyResult
	err := e.transition(ctx, userID, func(cur *domain.User, now time.Time) (domain.Mutation, error) {
		last, err := e.store.LastCompletion(ctx, userID, in.NoteID)
		if err != nil {
			return domain.Mutation{}, fmt.Errorf("%w: load cooldown: %w", domain.ErrPersistence, err)
		}
		if wait := e.cooldownLeft(last, now); wait > 0 {
			res = throttledResult(cur, wait)
			return domain.Mutation{}, nil
		}

		u := cur.Clone()
		ev := domain.StudyCompletionEvent{
			NoteID:             in.NoteID,
			Duration:           in.Duration,
			Subject:            in.Subject,
			Topic:              in.Topic,
			FlashcardsReviewed: in.FlashcardsReviewed,
		}
		streak := e.streaks.RecordActivity(u, now)
		u.Stats.StudySessions++
		u.Stats.StudySeconds += int64(in.Duration / time.Second)
		u.Stats.FlashcardsReviewed += int64(in.FlashcardsReviewed)

		base := e.studyXP(in)
		xp, award := e.credit(u, ev, base, now)

		res = StudyResult{
			Success:       true,
			XPEarned:      base + award.XP,
			BaseXP:        base,
			BadgeXP:       award.XP,
			TotalXP:       xp.NewXP,
			CurrentStreak: streak.Current,
			LongestStreak: streak.Longest,
			Level:         xp.NewLevel,
			LeveledUp:     xp.LeveledUp,
			AwardedBadges: award.Badges,
		}
		return domain.Mutation{
			User:      u,
			NewBadges: earned(award, now),
			Activity: e.activity(userID, domain.ActivityStudy, base+award.XP, now,
				"Completed a study session on note %s", in.NoteID),
			Cooldown: &domain.CooldownMark{
				NoteID:      in.NoteID,
				CompletedAt: now,
				NotAfter:    now.Add(-e.cfg.Cooldown),
			},
		}, nil
	})

	switch {
	case errors.Is(err, domain.ErrCooldownActive):
		// A concurrent completion for the same note won the race.
		cur, lerr := e.store.LoadUser(ctx, userID)
		if lerr != nil {
			return StudyResult{}, e.persistErr(lerr)
		}
		last, lerr := e.store.LastCompletion(ctx, userID, in.NoteID)
		if lerr != nil {
			return StudyResult{}, e.persistErr(lerr)
		}
		wait := e.cooldownLeft(last, e.now())
		if wait <= 0 {
			wait = e.cfg.Cooldown
		}
		metrics.StudyCompletions.WithLabelValues("throttled").Inc()
		return throttledResult(cur, wait), nil
	case err != nil:
		metrics.StudyCompletions.WithLabelValues("failed").Inc()
		e.log.Error("study completion failed", "user_id", userID, "note_id", in.NoteID, "error", err)
		return StudyResult{}, err
	case res.Throttled:
		metrics.StudyCompletions.WithLabelValues("throttled").Inc()
		return res, nil
	}

	metrics.StudyCompletions.WithLabelValues("credited").Inc()
	e.observe("study", res.BaseXP, res.LeveledUp, res.AwardedBadges)
	e.log.Info("study credited",
		"user_id", userID, "note_id", in.NoteID,
		"xp", res.XPEarned, "streak", res.CurrentStreak, "level", res.Level,
		"badges", len(res.AwardedBadges))
	return res, nil
}

// cooldownLeft returns how long the note stays throttled; zero or less means
// it can be credited.
func (e *Engine) cooldownLeft(last, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	return e.cfg.Cooldown - now.Sub(last)
}

func throttledResult(u *domain.User, retryAfter time.Duration) StudyResult {
	return StudyResult{
		Throttled:     true,
		RetryAfter:    retryAfter,
		TotalXP:       u.XP,
		CurrentStreak: u.Streak.Current,
		LongestStreak: u.Streak.Longest,
		Level:         LevelForXP(u.XP),
	}
}

// ─── Other Events ───────────────────────────────────────────────────────────

// RecordUpload credits an uploaded note and evaluates upload badges. A note
// is credited once; a replayed event reports Duplicate.
func (e *Engine) RecordUpload(ctx context.Context, userID string, ev domain.UploadEvent) (Outcome, error) {
	if strings.TrimSpace(ev.NoteID) == "" {
		return Outcome{}, domain.Invalid("noteId", "required")
	}
	return e.event(ctx, userID, "upload", func(u *domain.User, m *domain.Mutation, now time.Time) (domain.Event, int64, *domain.ActivityEntry) {
		u.Stats.NotesUploaded++
		u.Stats.AddSubject(ev.Subject)
		m.Upload = ev.NoteID
		return ev, e.cfg.UploadXP, e.activity(userID, domain.ActivityUpload, 0, now, "Uploaded note %s", ev.NoteID)
	})
}

// RecordAIUsage records a successful AI generation. Quota is consumed
// separately, before the generation runs.
func (e *Engine) RecordAIUsage(ctx context.Context, userID string, ev domain.AIUsageEvent) (Outcome, error) {
	if strings.TrimSpace(ev.NoteID) == "" {
		return Outcome{}, domain.Invalid("noteId", "required")
	}
	if !ev.Feature.Valid() {
		return Outcome{}, domain.Invalid("feature", fmt.Sprintf("unknown feature %q", ev.Feature))
	}
	return e.event(ctx, userID, "ai", func(u *domain.User, _ *domain.Mutation, now time.Time) (domain.Event, int64, *domain.ActivityEntry) {
		typ, desc := domain.ActivityAISummary, "Generated an AI summary for note %s"
		if ev.Feature == domain.FeatureFlashcard {
			u.Stats.FlashcardSetsMade++
			typ, desc = domain.ActivityAIFlashcards, "Generated AI flashcards for note %s"
		} else {
			u.Stats.SummariesGenerated++
		}
		return ev, e.cfg.AIUsageXP, e.activity(userID, typ, 0, now, desc, ev.NoteID)
	})
}

// RecordRating records a rating another user gave one of userID's notes.
// Only positive ratings (4 or 5) earn XP. Each rater counts once per note;
// a repeat reports Duplicate and leaves the first score standing.
func (e *Engine) RecordRating(ctx context.Context, userID string, ev domain.RatingEvent) (Outcome, error) {
	switch {
	case strings.TrimSpace(ev.NoteID) == "":
		return Outcome{}, domain.Invalid("noteId", "required")
	case strings.TrimSpace(ev.RaterID) == "":
		return Outcome{}, domain.Invalid("raterId", "required")
	case ev.RaterID == userID:
		return Outcome{}, domain.Invalid("raterId", "cannot rate your own note")
	case ev.Score < 1 || ev.Score > 5:
		return Outcome{}, domain.Invalid("score", "must be between 1 and 5")
	}
	return e.event(ctx, userID, "rating", func(u *domain.User, m *domain.Mutation, now time.Time) (domain.Event, int64, *domain.ActivityEntry) {
		m.Rating = &domain.RatingMark{NoteID: ev.NoteID, RaterID: ev.RaterID, Score: ev.Score}
		u.Stats.RatingsReceived++
		var base int64
		if ev.Positive() {
			u.Stats.PositiveRatings++
			base = e.cfg.RatingXP
		}
		return ev, base, e.activity(userID, domain.ActivityRating, 0, now,
			"Received a %d-star rating on note %s", ev.Score, ev.NoteID)
	})
}

// apply mutates the clone for one event, may set once-only marks on the
// mutation, and returns the event, its base XP and an activity entry whose
// XPEarned is filled in afterwards.
type applyFunc func(u *domain.User, m *domain.Mutation, now time.Time) (domain.Event, int64, *domain.ActivityEntry)

func (e *Engine) event(ctx context.Context, userID, source string, apply applyFunc) (Outcome, error) {
	var (
		out  Outcome
		base int64
	)
	err := e.transition(ctx, userID, func(cur *domain.User, now time.Time) (domain.Mutation, error) {
		u := cur.Clone()
		m := domain.Mutation{User: u}
		ev, b, entry := apply(u, &m, now)
		base = b
		xp, award := e.credit(u, ev, base, now)
		entry.XPEarned = base + award.XP
		out = Outcome{
			XPEarned:      base + award.XP,
			TotalXP:       xp.NewXP,
			Level:         xp.NewLevel,
			LeveledUp:     xp.LeveledUp,
			AwardedBadges: award.Badges,
		}
		m.NewBadges = earned(award, now)
		m.Activity = entry
		return m, nil
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		cur, lerr := e.store.LoadUser(ctx, userID)
		if lerr != nil {
			return Outcome{}, e.persistErr(lerr)
		}
		e.log.Debug("duplicate event ignored", "user_id", userID, "source", source)
		return Outcome{Duplicate: true, TotalXP: cur.XP, Level: LevelForXP(cur.XP)}, nil
	}
	if err != nil {
		e.log.Error("event not recorded", "user_id", userID, "source", source, "error", err)
		return Outcome{}, err
	}
	e.observe(source, base, out.LeveledUp, out.AwardedBadges)
	e.log.Debug("event recorded", "user_id", userID, "source", source, "xp", out.XPEarned)
	return out, nil
}

// ─── Shared Steps ───────────────────────────────────────────────────────────

// credit evaluates badges against the post-event snapshot, then applies base
// and badge XP as one delta. Badge rewards do not trigger further badges in
// the same transition; level criteria see the base XP as pending.
func (e *Engine) credit(u *domain.User, ev domain.Event, base int64, now time.Time) (XPResult, Award) {
	award := e.evaluator.Evaluate(u, ev, base, now)
	return ApplyXP(u, base+award.XP), award
}

func earned(a Award, now time.Time) []domain.EarnedBadge {
	if len(a.Badges) == 0 {
		return nil
	}
	out := make([]domain.EarnedBadge, len(a.Badges))
	for i, b := range a.Badges {
		out[i] = domain.EarnedBadge{BadgeID: b.ID, EarnedAt: now}
	}
	return out
}

func (e *Engine) activity(userID string, typ domain.ActivityType, xp int64, now time.Time, format string, args ...any) *domain.ActivityEntry {
	return &domain.ActivityEntry{
		UserID:      userID,
		Type:        typ,
		Description: fmt.Sprintf(format, args...),
		XPEarned:    xp,
		CreatedAt:   now,
	}
}

func (e *Engine) observe(source string, base int64, leveledUp bool, badges []domain.BadgeDef) {
	metrics.XPAwarded.WithLabelValues(source).Add(float64(base))
	for _, b := range badges {
		metrics.BadgesAwarded.WithLabelValues(b.ID).Inc()
		metrics.XPAwarded.WithLabelValues("badge").Add(float64(b.XPReward))
	}
	if leveledUp {
		metrics.LevelUps.Inc()
	}
}

// ─── Transition Loop ────────────────────────────────────────────────────────

// buildFunc computes a transition from the loaded user. Returning a Mutation
// with a nil User means there is nothing to write.
type buildFunc func(cur *domain.User, now time.Time) (domain.Mutation, error)

// transition runs build under the user's lock and commits the result,
// recomputing from a fresh load if the store reports a version conflict.
// Either the whole mutation commits or nothing does.
func (e *Engine) transition(ctx context.Context, userID string, build buildFunc) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Invalid("userId", "required")
	}
	unlock, err := e.locker.Lock(ctx, "user:"+userID)
	if err != nil {
		return fmt.Errorf("%w: lock user: %w", domain.ErrPersistence, err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		cur, err := e.store.LoadUser(ctx, userID)
		if err != nil {
			return e.persistErr(err)
		}
		now := e.now()
		m, err := build(cur, now)
		if err != nil {
			return err
		}
		if m.User == nil {
			return nil
		}
		m.User.UpdatedAt = now

		err = e.commit(ctx, m)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrVersionConflict) && attempt < e.cfg.CommitRetries:
			metrics.CommitConflicts.Inc()
			e.log.Warn("version conflict, retrying", "user_id", userID, "attempt", attempt+1)
			continue
		case errors.Is(err, domain.ErrCooldownActive), errors.Is(err, domain.ErrDuplicateEvent):
			return err
		default:
			return e.persistErr(err)
		}
	}
}

func (e *Engine) commit(ctx context.Context, m domain.Mutation) error {
	if e.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.WriteTimeout)
		defer cancel()
	}
	start := time.Now()
	err := e.store.Commit(ctx, m)
	metrics.CommitLatency.Observe(time.Since(start).Seconds())
	return err
}

// persistErr passes through domain errors and marks everything else as a
// persistence failure.
func (e *Engine) persistErr(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

// ─── Users ──────────────────────────────────────────────────────────────────

// NewUser is the input of RegisterUser.
type NewUser struct {
	ID       string // generated when empty
	Name     string
	Username string
	Email    string
}

// RegisterUser creates a user at level 1 with no XP.
func (e *Engine) RegisterUser(ctx context.Context, in NewUser) (*domain.User, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, domain.Invalid("name", "required")
	case strings.TrimSpace(in.Username) == "":
		return nil, domain.Invalid("username", "required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, domain.Invalid("email", "not a valid address")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	now := e.now()
	u := &domain.User{
		ID:        in.ID,
		Name:      strings.TrimSpace(in.Name),
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Level:     1,
		AIUsage:   domain.AIUsage{LastReset: now},
		CreatedAt: now,
		UpdatedAt: now,
	}

	wctx := ctx
	if e.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, e.cfg.WriteTimeout)
		defer cancel()
	}
	if err := e.store.CreateUser(wctx, u); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, e.persistErr(err)
	}
	e.log.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// EarnedBadgeView joins an earned badge with its definition.
type EarnedBadgeView struct {
	domain.BadgeDef
	EarnedAt time.Time `json:"earned_at"`
}

// Profile is the read model behind GET /user/profile.
type Profile struct {
	User     *domain.User      `json:"user"`
	Progress LevelProgress     `json:"progress"`
	Quota    []QuotaResult     `json:"quota"`
	Badges   []EarnedBadgeView `json:"badges"`
}

// Profile loads a user with derived level progress, remaining quota and
// resolved badges. Badges no longer in the catalog are skipped.
func (e *Engine) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := e.store.LoadUser(ctx, userID)
	if err != nil {
		return Profile{}, e.persistErr(err)
	}
	now := e.now()
	p := Profile{
		User:     u,
		Progress: ProgressFor(u.XP),
		Quota: []QuotaResult{
			e.quota.Peek(u, domain.FeatureSummary, now),
			e.quota.Peek(u, domain.FeatureFlashcard, now),
		},
		Badges: make([]EarnedBadgeView, 0, len(u.Badges)),
	}
	for _, b := range u.Badges {
		def, err := e.catalog.Get(b.BadgeID)
		if err != nil {
			continue
		}
		p.Badges = append(p.Badges, EarnedBadgeView{BadgeDef: def, EarnedAt: b.EarnedAt})
	}
	return p, nil
}

// Leaderboard returns the top users by XP. limit must be 1..100.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		return nil, domain.Invalid("limit", "must be between 1 and 100")
	}
	entries, err := e.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, e.persistErr(err)
	}
	return entries, nil
}

// ─── Quota ──────────────────────────────────────────────────────────────────

// ConsumeQuota takes one unit of a feature's AI quota. A denied request
// writes nothing.
func (e *Engine) ConsumeQuota(ctx context.Context, userID string, f domain.Feature) (QuotaResult, error) {
	if !f.Valid() {
		return QuotaResult{}, domain.Invalid("feature", fmt.Sprintf("unknown feature %q", f))
	}
	var res QuotaResult
	err := e.transition(ctx, userID, func(cur *domain.User, now time.Time) (domain.Mutation, error) {
		u := cur.Clone()
		res = e.quota.CheckAndConsume(u, f, now)
		if !res.Allowed {
			return domain.Mutation{}, nil
		}
		return domain.Mutation{User: u}, nil
	})
	if err != nil {
		return QuotaResult{}, err
	}
	result := "allowed"
	if !res.Allowed {
		result = "denied"
	}
	metrics.QuotaDecisions.WithLabelValues(string(f), result).Inc()
	return res, nil
}

// RefundQuota returns one unit of quota after a failed generation.
func (e *Engine) RefundQuota(ctx context.Context, userID string, f domain.Feature) (bool, error) {
	if !f.Valid() {
		return false, domain.Invalid("feature", fmt.Sprintf("unknown feature %q", f))
	}
	var refunded bool
	err := e.transition(ctx, userID, func(cur *domain.User, now time.Time) (domain.Mutation, error) {
		u := cur.Clone()
		refunded = e.quota.Refund(u, f, now)
		if !refunded {
			return domain.Mutation{}, nil
		}
		return domain.Mutation{User: u}, nil
	})
	return refunded, err
}

// ─── Favorites ──────────────────────────────────────────────────────────────

// ToggleFavorite adds or removes a note from the user's favorites and
// reports whether it is now a favorite.
func (e *Engine) ToggleFavorite(ctx context.Context, userID, noteID string) (bool, error) {
	if strings.TrimSpace(noteID) == "" {
		return false, domain.Invalid("noteId", "required")
	}
	var favorite bool
	err := e.transition(ctx, userID, func(cur *domain.User, now time.Time) (domain.Mutation, error) {
		u := cur.Clone()
		m := domain.Mutation{User: u}
		if u.IsFavorite(noteID) {
			u.Favorites = removeString(u.Favorites, noteID)
			m.FavoriteRemove = noteID
			favorite = false
		} else {
			u.Favorites = append(u.Favorites, noteID)
			m.FavoriteAdd = noteID
			favorite = true
		}
		return m, nil
	})
	return favorite, err
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
