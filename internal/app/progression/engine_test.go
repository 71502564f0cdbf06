package progression_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eduguardian/guardian/internal/app/progression"
	"github.com/eduguardian/guardian/internal/domain"
	"github.com/eduguardian/guardian/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var start = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

// testEngine returns an engine on a fresh DB with one registered user "u1".
func testEngine(t *testing.T) (*progression.Engine, *sqlite.DB, *clock) {
	t.Helper()
	db := testDB(t)
	clk := &clock{now: start}
	eng := progression.NewEngine(db, progression.DefaultConfig(), nil)
	eng.SetClock(clk.Now)

	_, err := eng.RegisterUser(context.Background(), progression.NewUser{
		ID: "u1", Name: "Ada Lovelace", Username: "ada", Email: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return eng, db, clk
}

// setXP commits an XP total directly, bypassing the engine.
func setXP(t *testing.T, db *sqlite.DB, id string, xp int64) {
	t.Helper()
	u, err := db.LoadUser(context.Background(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	u.XP = xp
	u.Level = progression.LevelForXP(xp)
	if err := db.Commit(context.Background(), domain.Mutation{User: u}); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func study(note string) progression.StudyCompletion {
	return progression.StudyCompletion{NoteID: note, Duration: 10 * time.Minute}
}

// ═══════════════════════════════════════════════════════════════════════════
// Registration & Profile
// ═══════════════════════════════════════════════════════════════════════════

func TestRegisterUser(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()

	u, err := eng.RegisterUser(ctx, progression.NewUser{Name: "Grace", Username: "grace", Email: "Grace@Example.com"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == "" {
		t.Error("id should be generated")
	}
	if u.Level != 1 || u.XP != 0 {
		t.Errorf("new user should be level 1 with 0 xp, got %d/%d", u.Level, u.XP)
	}
	if u.Email != "grace@example.com" {
		t.Errorf("email should be normalized, got %s", u.Email)
	}

	_, err = eng.RegisterUser(ctx, progression.NewUser{Name: "Other", Username: "grace", Email: "x@example.com"})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_Validation(t *testing.T) {
	eng, _, _ := testEngine(t)
	for _, in := range []progression.NewUser{
		{Username: "a", Email: "a@b.c"},
		{Name: "A", Email: "a@b.c"},
		{Name: "A", Username: "a", Email: "not-an-email"},
	} {
		_, err := eng.RegisterUser(context.Background(), in)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", in, err)
		}
	}
}

func TestProfile(t *testing.T) {
	eng, db, _ := testEngine(t)
	setXP(t, db, "u1", 1250)

	p, err := eng.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.User.XP != 1250 || p.Progress.Level != 2 || p.Progress.XPIntoLevel != 250 {
		t.Errorf("unexpected profile %+v / %+v", p.User, p.Progress)
	}
	if len(p.Quota) != 2 || p.Quota[0].Remaining != 5 || p.Quota[1].Remaining != 5 {
		t.Errorf("fresh user should have full quota, got %+v", p.Quota)
	}
}

func TestProfile_UnknownUser(t *testing.T) {
	eng, _, _ := testEngine(t)
	_, err := eng.Profile(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Study Completion
// ═══════════════════════════════════════════════════════════════════════════

func TestCompleteStudy_FirstSession(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	res, err := eng.CompleteStudy(ctx, "u1", progression.StudyCompletion{
		NoteID: "n1", Duration: 20 * time.Minute, Subject: "math", Topic: "limits", FlashcardsReviewed: 12,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.Success || res.Throttled {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.CurrentStreak != 1 {
		t.Errorf("streak = %d", res.CurrentStreak)
	}
	if len(res.AwardedBadges) != 1 || res.AwardedBadges[0].ID != "first_study" {
		t.Fatalf("expected first_study, got %+v", res.AwardedBadges)
	}
	if res.BaseXP != 100 || res.BadgeXP != 25 || res.XPEarned != 125 {
		t.Errorf("xp breakdown %d+%d=%d", res.BaseXP, res.BadgeXP, res.XPEarned)
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.XP != 125 || u.Stats.StudySessions != 1 || u.Stats.FlashcardsReviewed != 12 {
		t.Errorf("persisted user %+v", u)
	}
	if len(u.Stats.Subjects) != 0 {
		t.Errorf("studied subjects must not count as uploaded ones: %v", u.Stats.Subjects)
	}
	entries, _ := db.ListActivity(ctx, "u1", 10)
	if len(entries) != 1 || entries[0].Type != domain.ActivityStudy || entries[0].XPEarned != 125 {
		t.Errorf("activity = %+v", entries)
	}
}

func TestCompleteStudy_LevelUpScenario(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	// Hold first_study already so no badge fires.
	u, _ := db.LoadUser(ctx, "u1")
	u.XP = 950
	if err := db.Commit(ctx, domain.Mutation{User: u, NewBadges: []domain.EarnedBadge{{BadgeID: "first_study", EarnedAt: start}}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := eng.CompleteStudy(ctx, "u1", study("n1"))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(res.AwardedBadges) != 0 {
		t.Fatalf("no badges expected, got %+v", res.AwardedBadges)
	}
	if res.TotalXP != 1050 || res.Level != 2 || !res.LeveledUp {
		t.Errorf("expected xp=1050 level=2 leveledUp, got %+v", res)
	}
}

func TestCompleteStudy_PointsEarned(t *testing.T) {
	eng, _, clk := testEngine(t)
	ctx := context.Background()

	pts := int64(40)
	in := study("n1")
	in.PointsEarned = &pts
	res, err := eng.CompleteStudy(ctx, "u1", in)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.BaseXP != 40 {
		t.Errorf("caller-specified award should be used, got %d", res.BaseXP)
	}

	huge := int64(1_000_000)
	in = study("n2")
	in.PointsEarned = &huge
	clk.Advance(time.Minute)
	res, err = eng.CompleteStudy(ctx, "u1", in)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.BaseXP != progression.DefaultConfig().MaxStudyXP {
		t.Errorf("award should be capped, got %d", res.BaseXP)
	}
}

func TestCompleteStudy_Validation(t *testing.T) {
	eng, db, _ := testEngine(t)
	neg := int64(-10)
	tests := []progression.StudyCompletion{
		{NoteID: "", Duration: time.Hour},
		{NoteID: "n1", Duration: time.Second},
		{NoteID: "n1", Duration: time.Hour, PointsEarned: &neg},
		{NoteID: "n1", Duration: time.Hour, FlashcardsReviewed: -1},
		{NoteID: "n1", Duration: 25 * time.Hour},
	}
	for _, in := range tests {
		_, err := eng.CompleteStudy(context.Background(), "u1", in)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", in, err)
		}
	}
	u, _ := db.LoadUser(context.Background(), "u1")
	if u.Version != 0 {
		t.Error("rejected input must not write anything")
	}
}

func TestCompleteStudy_SubjectsDoNotEarnUploadBadges(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	for i, subj := range []string{"math", "physics", "history"} {
		res, err := eng.CompleteStudy(ctx, "u1", progression.StudyCompletion{
			NoteID: "n" + subj, Duration: 10 * time.Minute, Subject: subj,
		})
		if err != nil || !res.Success {
			t.Fatalf("study %d: %+v %v", i, res, err)
		}
		for _, b := range res.AwardedBadges {
			if b.ID == "multi_subject" {
				t.Errorf("study %d awarded multi_subject without uploads", i)
			}
		}
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.HasBadge("multi_subject") || len(u.Stats.Subjects) != 0 {
		t.Errorf("uploads=%d subjects=%v badges=%+v", u.Stats.NotesUploaded, u.Stats.Subjects, u.Badges)
	}
}

func TestCompleteStudy_UnknownUser(t *testing.T) {
	eng, _, _ := testEngine(t)
	_, err := eng.CompleteStudy(context.Background(), "ghost", study("n1"))
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCompleteStudy_CooldownThrottles(t *testing.T) {
	eng, db, clk := testEngine(t)
	ctx := context.Background()

	first, err := eng.CompleteStudy(ctx, "u1", study("n1"))
	if err != nil || !first.Success {
		t.Fatalf("first completion: %+v %v", first, err)
	}

	clk.Advance(2 * time.Minute)
	second, err := eng.CompleteStudy(ctx, "u1", study("n1"))
	if err != nil {
		t.Fatalf("throttling is not an error: %v", err)
	}
	if !second.Throttled || second.Success {
		t.Fatalf("expected throttled no-op, got %+v", second)
	}
	if second.RetryAfter != 3*time.Minute {
		t.Errorf("retry after = %v", second.RetryAfter)
	}
	if second.TotalXP != first.TotalXP {
		t.Errorf("throttled call reports current xp %d, want %d", second.TotalXP, first.TotalXP)
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.XP != first.TotalXP || u.Stats.StudySessions != 1 {
		t.Errorf("effects applied twice: xp=%d sessions=%d", u.XP, u.Stats.StudySessions)
	}

	// A different note is not throttled.
	other, err := eng.CompleteStudy(ctx, "u1", study("n2"))
	if err != nil || !other.Success {
		t.Errorf("different note should be credited: %+v %v", other, err)
	}

	// After the window the same note is eligible again.
	clk.Advance(5 * time.Minute)
	again, err := eng.CompleteStudy(ctx, "u1", study("n1"))
	if err != nil || !again.Success {
		t.Errorf("cooldown should have expired: %+v %v", again, err)
	}
}

func TestCompleteStudy_ConcurrentSameNote(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make([]progression.StudyResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.CompleteStudy(ctx, "u1", study("n1"))
		}(i)
	}
	wg.Wait()

	credited := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i].Success {
			credited++
		}
	}
	if credited != 1 {
		t.Errorf("exactly one call may be credited, got %d", credited)
	}
	u, _ := db.LoadUser(ctx, "u1")
	if u.Stats.StudySessions != 1 {
		t.Errorf("sessions = %d", u.Stats.StudySessions)
	}
}

func TestCompleteStudy_ConcurrentDifferentNotes(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	notes := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for _, note := range notes {
		wg.Add(1)
		go func(note string) {
			defer wg.Done()
			if _, err := eng.CompleteStudy(ctx, "u1", study(note)); err != nil {
				t.Errorf("note %s: %v", note, err)
			}
		}(note)
	}
	wg.Wait()

	u, _ := db.LoadUser(ctx, "u1")
	// 5 sessions at 100 each, plus first_study (25) once. No lost updates.
	if u.Stats.StudySessions != 5 || u.XP != 525 {
		t.Errorf("lost update: sessions=%d xp=%d", u.Stats.StudySessions, u.XP)
	}
}

func TestCompleteStudy_StreakAcrossDays(t *testing.T) {
	eng, db, clk := testEngine(t)
	ctx := context.Background()

	var last progression.StudyResult
	for day := 0; day < 7; day++ {
		res, err := eng.CompleteStudy(ctx, "u1", study("n1"))
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		last = res
		clk.Advance(24 * time.Hour)
	}
	if last.CurrentStreak != 7 {
		t.Fatalf("expected 7-day streak, got %d", last.CurrentStreak)
	}
	found := false
	for _, b := range last.AwardedBadges {
		if b.ID == "streak_7" {
			found = true
		}
	}
	if !found {
		t.Errorf("streak_7 should be awarded on day 7, got %+v", last.AwardedBadges)
	}

	u, _ := db.LoadUser(ctx, "u1")
	count := 0
	for _, b := range u.Badges {
		if b.BadgeID == "streak_7" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("streak_7 held %d times", count)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Persistence Failures
// ═══════════════════════════════════════════════════════════════════════════

// failingStore wraps a real store and fails Commit a configurable number of
// times with a configurable error.
type failingStore struct {
	domain.ProgressStore
	mu       sync.Mutex
	failures int
	err      error
	commits  int
}

func (f *failingStore) Commit(ctx context.Context, m domain.Mutation) error {
	f.mu.Lock()
	f.commits++
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.ProgressStore.Commit(ctx, m)
}

func TestCompleteStudy_PersistenceFailureIsAtomic(t *testing.T) {
	_, db, clk := testEngine(t)
	store := &failingStore{ProgressStore: db, failures: 1, err: errors.New("disk full")}
	eng := progression.NewEngine(store, progression.DefaultConfig(), nil)
	eng.SetClock(clk.Now)

	_, err := eng.CompleteStudy(context.Background(), "u1", study("n1"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	u, _ := db.LoadUser(context.Background(), "u1")
	if u.XP != 0 || u.Streak.Current != 0 || len(u.Badges) != 0 {
		t.Errorf("partial state observable: %+v", u)
	}
	if last, _ := db.LastCompletion(context.Background(), "u1", "n1"); !last.IsZero() {
		t.Error("cooldown must not be recorded on failure")
	}

	// The client retries and is credited exactly once.
	res, err := eng.CompleteStudy(context.Background(), "u1", study("n1"))
	if err != nil || !res.Success {
		t.Fatalf("retry: %+v %v", res, err)
	}
}

func TestCompleteStudy_RetriesVersionConflict(t *testing.T) {
	_, db, clk := testEngine(t)
	store := &failingStore{ProgressStore: db, failures: 2, err: domain.ErrVersionConflict}
	eng := progression.NewEngine(store, progression.DefaultConfig(), nil)
	eng.SetClock(clk.Now)

	res, err := eng.CompleteStudy(context.Background(), "u1", study("n1"))
	if err != nil || !res.Success {
		t.Fatalf("expected success after retries: %+v %v", res, err)
	}
	if store.commits != 3 {
		t.Errorf("expected 3 commit attempts, got %d", store.commits)
	}
}

func TestCompleteStudy_ConflictRetriesExhausted(t *testing.T) {
	_, db, clk := testEngine(t)
	cfg := progression.DefaultConfig()
	cfg.CommitRetries = 1
	store := &failingStore{ProgressStore: db, failures: 5, err: domain.ErrVersionConflict}
	eng := progression.NewEngine(store, cfg, nil)
	eng.SetClock(clk.Now)

	_, err := eng.CompleteStudy(context.Background(), "u1", study("n1"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
	if store.commits != 2 {
		t.Errorf("expected 2 attempts, got %d", store.commits)
	}
}

// staleCooldownStore hides the first LastCompletion read, as if a concurrent
// completion committed between the read and the write.
type staleCooldownStore struct {
	domain.ProgressStore
	mu    sync.Mutex
	stale int
}

func (s *staleCooldownStore) LastCompletion(ctx context.Context, userID, noteID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale > 0 {
		s.stale--
		return time.Time{}, nil
	}
	return s.ProgressStore.LastCompletion(ctx, userID, noteID)
}

func TestCompleteStudy_LostCooldownRaceReportsRemainingWindow(t *testing.T) {
	eng, db, clk := testEngine(t)
	ctx := context.Background()

	first, err := eng.CompleteStudy(ctx, "u1", study("n1"))
	if err != nil || !first.Success {
		t.Fatalf("first completion: %+v %v", first, err)
	}

	clk.Advance(2 * time.Minute)
	racer := progression.NewEngine(&staleCooldownStore{ProgressStore: db, stale: 1}, progression.DefaultConfig(), nil)
	racer.SetClock(clk.Now)

	res, err := racer.CompleteStudy(ctx, "u1", study("n1"))
	if err != nil {
		t.Fatalf("lost race is not an error: %v", err)
	}
	if !res.Throttled {
		t.Fatalf("expected throttled, got %+v", res)
	}
	if res.RetryAfter != 3*time.Minute {
		t.Errorf("retry after = %v, want remaining 3m", res.RetryAfter)
	}
	if res.TotalXP != first.TotalXP {
		t.Errorf("total xp = %d, want %d", res.TotalXP, first.TotalXP)
	}
}

// slowStore blocks Commit until the context is done.
type slowStore struct{ domain.ProgressStore }

func (s slowStore) Commit(ctx context.Context, _ domain.Mutation) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCompleteStudy_WriteTimeoutFailsClosed(t *testing.T) {
	_, db, clk := testEngine(t)
	cfg := progression.DefaultConfig()
	cfg.WriteTimeout = 20 * time.Millisecond
	eng := progression.NewEngine(slowStore{db}, cfg, nil)
	eng.SetClock(clk.Now)

	_, err := eng.CompleteStudy(context.Background(), "u1", study("n1"))
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should surface as persistence error, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Other Events
// ═══════════════════════════════════════════════════════════════════════════

func TestRecordUpload(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	out, err := eng.RecordUpload(ctx, "u1", domain.UploadEvent{NoteID: "n1", Subject: "physics"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(out.AwardedBadges) != 1 || out.AwardedBadges[0].ID != "first_upload" {
		t.Errorf("expected first_upload, got %+v", out.AwardedBadges)
	}
	if out.XPEarned != 20+50 {
		t.Errorf("xp earned = %d", out.XPEarned)
	}

	for i, subj := range []string{"chemistry", "biology"} {
		out, err = eng.RecordUpload(ctx, "u1", domain.UploadEvent{NoteID: "x" + subj, Subject: subj})
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}
	if len(out.AwardedBadges) != 1 || out.AwardedBadges[0].ID != "multi_subject" {
		t.Errorf("third distinct subject should earn multi_subject, got %+v", out.AwardedBadges)
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.Stats.NotesUploaded != 3 || len(u.Stats.Subjects) != 3 {
		t.Errorf("stats = %+v", u.Stats)
	}
}

func TestRecordUpload_ReplayIsNoop(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	first, err := eng.RecordUpload(ctx, "u1", domain.UploadEvent{NoteID: "same-note", Subject: "math"})
	if err != nil || first.Duplicate {
		t.Fatalf("first upload: %+v %v", first, err)
	}
	for i := 0; i < 10; i++ {
		out, err := eng.RecordUpload(ctx, "u1", domain.UploadEvent{NoteID: "same-note", Subject: "math"})
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if !out.Duplicate || out.XPEarned != 0 || len(out.AwardedBadges) != 0 {
			t.Errorf("replay %d should be a no-op, got %+v", i, out)
		}
		if out.TotalXP != first.TotalXP {
			t.Errorf("replay %d total xp = %d, want %d", i, out.TotalXP, first.TotalXP)
		}
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.Stats.NotesUploaded != 1 || u.XP != 70 || u.HasBadge("uploads_10") {
		t.Errorf("uploads=%d xp=%d badges=%+v", u.Stats.NotesUploaded, u.XP, u.Badges)
	}
	entries, _ := db.ListActivity(ctx, "u1", 20)
	if len(entries) != 1 {
		t.Errorf("activity entries = %d, want 1", len(entries))
	}

	// Another user may upload a note with the same id.
	if _, err := eng.RegisterUser(ctx, progression.NewUser{
		ID: "u2", Name: "Grace Hopper", Username: "grace", Email: "grace@example.com",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := eng.RecordUpload(ctx, "u2", domain.UploadEvent{NoteID: "same-note"})
	if err != nil || out.Duplicate {
		t.Errorf("other user's upload: %+v %v", out, err)
	}
}

func TestRecordRating(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	out, err := eng.RecordRating(ctx, "u1", domain.RatingEvent{NoteID: "n1", RaterID: "u2", Score: 5})
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if out.XPEarned != 10 {
		t.Errorf("positive rating xp = %d", out.XPEarned)
	}
	out, err = eng.RecordRating(ctx, "u1", domain.RatingEvent{NoteID: "n1", RaterID: "u3", Score: 2})
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if out.XPEarned != 0 {
		t.Errorf("negative rating should earn nothing, got %d", out.XPEarned)
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.Stats.RatingsReceived != 2 || u.Stats.PositiveRatings != 1 {
		t.Errorf("stats = %+v", u.Stats)
	}
}

func TestRecordRating_ReplayCountsOnce(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		out, err := eng.RecordRating(ctx, "u1", domain.RatingEvent{NoteID: "n1", RaterID: "r1", Score: 5})
		if err != nil {
			t.Fatalf("rating %d: %v", i, err)
		}
		if i > 0 && (!out.Duplicate || out.XPEarned != 0) {
			t.Errorf("repeat %d should be a no-op, got %+v", i, out)
		}
	}
	// A changed score from the same rater still counts once.
	out, err := eng.RecordRating(ctx, "u1", domain.RatingEvent{NoteID: "n1", RaterID: "r1", Score: 1})
	if err != nil || !out.Duplicate {
		t.Errorf("rescore: %+v %v", out, err)
	}
	// The same rater on another note counts.
	out, err = eng.RecordRating(ctx, "u1", domain.RatingEvent{NoteID: "n2", RaterID: "r1", Score: 4})
	if err != nil || out.Duplicate || out.XPEarned != 10 {
		t.Errorf("other note: %+v %v", out, err)
	}

	u, _ := db.LoadUser(ctx, "u1")
	if u.Stats.RatingsReceived != 2 || u.Stats.PositiveRatings != 2 || u.HasBadge("well_rated") {
		t.Errorf("ratings=%d positive=%d badges=%+v", u.Stats.RatingsReceived, u.Stats.PositiveRatings, u.Badges)
	}
}

func TestRecordRating_Validation(t *testing.T) {
	eng, _, _ := testEngine(t)
	for _, ev := range []domain.RatingEvent{
		{NoteID: "n1", RaterID: "u1", Score: 5}, // self
		{NoteID: "n1", RaterID: "u2", Score: 0},
		{NoteID: "n1", RaterID: "u2", Score: 6},
		{NoteID: "", RaterID: "u2", Score: 3},
		{NoteID: "n1", RaterID: "", Score: 3},
	} {
		_, err := eng.RecordRating(context.Background(), "u1", ev)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", ev, err)
		}
	}
}

func TestRecordAIUsage(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	out, err := eng.RecordAIUsage(ctx, "u1", domain.AIUsageEvent{NoteID: "n1", Feature: domain.FeatureFlashcard})
	if err != nil {
		t.Fatalf("ai usage: %v", err)
	}
	if len(out.AwardedBadges) != 1 || out.AwardedBadges[0].ID != "first_flashcards" {
		t.Errorf("expected first_flashcards, got %+v", out.AwardedBadges)
	}
	u, _ := db.LoadUser(ctx, "u1")
	if u.Stats.FlashcardSetsMade != 1 || u.Stats.SummariesGenerated != 0 {
		t.Errorf("stats = %+v", u.Stats)
	}

	_, err = eng.RecordAIUsage(ctx, "u1", domain.AIUsageEvent{NoteID: "n1", Feature: "poem"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown feature should be rejected, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quota, Favorites, Leaderboard, Activity
// ═══════════════════════════════════════════════════════════════════════════

func TestConsumeQuota_PersistsOnlyOnSuccess(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := eng.ConsumeQuota(ctx, "u1", domain.FeatureSummary)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: %+v %v", i, res, err)
		}
	}
	before, _ := db.LoadUser(ctx, "u1")

	res, err := eng.ConsumeQuota(ctx, "u1", domain.FeatureSummary)
	if err != nil {
		t.Fatalf("denial is not an error: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("expected denial, got %+v", res)
	}
	after, _ := db.LoadUser(ctx, "u1")
	if after.Version != before.Version {
		t.Error("a denied request must not write")
	}

	refunded, err := eng.RefundQuota(ctx, "u1", domain.FeatureSummary)
	if err != nil || !refunded {
		t.Fatalf("refund: %v %v", refunded, err)
	}
	res, _ = eng.ConsumeQuota(ctx, "u1", domain.FeatureSummary)
	if !res.Allowed {
		t.Error("refunded unit should be usable again")
	}
}

func TestToggleFavorite(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	fav, err := eng.ToggleFavorite(ctx, "u1", "n1")
	if err != nil || !fav {
		t.Fatalf("first toggle: %v %v", fav, err)
	}
	u, _ := db.LoadUser(ctx, "u1")
	if !u.IsFavorite("n1") {
		t.Error("n1 should be a favorite")
	}

	fav, err = eng.ToggleFavorite(ctx, "u1", "n1")
	if err != nil || fav {
		t.Fatalf("second toggle: %v %v", fav, err)
	}
	u, _ = db.LoadUser(ctx, "u1")
	if u.IsFavorite("n1") {
		t.Error("n1 should be removed")
	}
}

func TestLeaderboard(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()
	if _, err := eng.RegisterUser(ctx, progression.NewUser{ID: "u2", Name: "B", Username: "b", Email: "b@example.com"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	setXP(t, db, "u2", 3000)

	top, err := eng.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "u2" || top[0].Level != 4 {
		t.Errorf("leaderboard = %+v", top)
	}

	for _, bad := range []int{0, 101} {
		if _, err := eng.Leaderboard(ctx, bad); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("limit %d should be rejected, got %v", bad, err)
		}
	}
}

func TestActivityService(t *testing.T) {
	eng, db, clk := testEngine(t)
	ctx := context.Background()
	svc := progression.NewActivityService(db)

	for _, note := range []string{"a", "b", "c"} {
		if _, err := eng.CompleteStudy(ctx, "u1", study(note)); err != nil {
			t.Fatalf("complete %s: %v", note, err)
		}
		clk.Advance(time.Second)
	}

	entries, err := svc.List(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].CreatedAt.After(entries[2].CreatedAt) {
		t.Error("expected newest first")
	}

	n, err := svc.Clear(ctx, "u1")
	if err != nil || n != 3 {
		t.Fatalf("clear: %d %v", n, err)
	}
	u, _ := db.LoadUser(ctx, "u1")
	if u.XP == 0 {
		t.Error("clearing the log must keep XP")
	}

	if _, err := svc.List(ctx, "ghost", 10); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
