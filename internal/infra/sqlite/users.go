package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eduguardian/guardian/internal/domain"
)

var _ domain.ProgressStore = (*DB)(nil)

// ─── User Repository ────────────────────────────────────────────────────────

const userColumns = `id, name, username, email, xp, level,
	streak_current, streak_longest, streak_last_activity,
	ai_summary_used, ai_flashcard_used, ai_last_reset,
	notes_uploaded, ratings_received, positive_ratings, study_sessions, study_seconds,
	flashcards_reviewed, summaries_generated, flashcard_sets,
	version, created_at, updated_at`

// CreateUser inserts a new user. Returns domain.ErrUserExists if the
// username or email is taken.
func (d *DB) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, name, username, email, xp, level, ai_last_reset, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		u.ID, u.Name, u.Username, u.Email, u.XP, u.Level, nullableMillis(u.AIUsage.LastReset),
		u.CreatedAt.UnixMilli(), u.UpdatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, u.Username)
	}
	return err
}

// LoadUser reads the full aggregate: row, badges, subjects and favorites.
func (d *DB) LoadUser(ctx context.Context, id string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if u.Badges, err = d.userBadges(ctx, id); err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	if u.Stats.Subjects, err = d.queryStrings(ctx,
		`SELECT subject FROM user_subjects WHERE user_id = ? ORDER BY subject`, id); err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	if u.Favorites, err = d.queryStrings(ctx,
		`SELECT note_id FROM favorite_notes WHERE user_id = ? ORDER BY added_at, note_id`, id); err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return u, nil
}

func (d *DB) userBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT badge_id, earned_at FROM user_badges WHERE user_id = ? ORDER BY earned_at, rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EarnedBadge
	for rows.Next() {
		var b domain.EarnedBadge
		var at int64
		if err := rows.Scan(&b.BadgeID, &at); err != nil {
			return nil, err
		}
		b.EarnedAt = fromMillis(at)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (d *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountUsers returns the number of registered users.
func (d *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Leaderboard returns the top users by XP; ties go to the earlier account.
func (d *DB) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, username, name, xp, level FROM users
		 ORDER BY xp DESC, created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Name, &e.XP, &e.Level); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Transitions ────────────────────────────────────────────────────────────

// LastCompletion returns when the note last earned study credit for the
// user, or the zero time.
func (d *DB) LastCompletion(ctx context.Context, userID, noteID string) (time.Time, error) {
	var at int64
	err := d.db.QueryRowContext(ctx,
		`SELECT completed_at FROM study_cooldowns WHERE user_id = ? AND note_id = ?`,
		userID, noteID,
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return fromMillis(at), nil
}

// Commit writes a whole transition in one transaction.
//
// The user row is updated only if its version still matches and the new XP
// is not lower than the stored one. The cooldown row is upserted only if the
// previous completion is at or before the mark's NotAfter. Upload and rating
// marks are inserted only once. Any guard failing rolls everything back.
func (d *DB) Commit(ctx context.Context, m domain.Mutation) error {
	if m.User == nil {
		return errors.New("commit: nil user")
	}
	u := m.User

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if c := m.Cooldown; c != nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO study_cooldowns (user_id, note_id, completed_at) VALUES (?, ?, ?)
			 ON CONFLICT(user_id, note_id) DO UPDATE SET completed_at = excluded.completed_at
			 WHERE study_cooldowns.completed_at <= ?`,
			u.ID, c.NoteID, c.CompletedAt.UnixMilli(), c.NotAfter.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("mark cooldown: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrCooldownActive
		}
	}

	if m.Upload != "" {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_uploads (user_id, note_id, uploaded_at) VALUES (?, ?, ?)`,
			u.ID, m.Upload, u.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("mark upload: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrDuplicateEvent
		}
	}

	if r := m.Rating; r != nil {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_ratings (user_id, note_id, rater_id, score, rated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			u.ID, r.NoteID, r.RaterID, r.Score, u.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("mark rating: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrDuplicateEvent
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET
			name = ?, xp = ?, level = ?,
			streak_current = ?, streak_longest = ?, streak_last_activity = ?,
			ai_summary_used = ?, ai_flashcard_used = ?, ai_last_reset = ?,
			notes_uploaded = ?, ratings_received = ?, positive_ratings = ?,
			study_sessions = ?, study_seconds = ?, flashcards_reviewed = ?,
			summaries_generated = ?, flashcard_sets = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND xp <= ?`,
		u.Name, u.XP, u.Level,
		u.Streak.Current, u.Streak.Longest, nullableMillis(u.Streak.LastActivity),
		u.AIUsage.SummaryUsed, u.AIUsage.FlashcardUsed, nullableMillis(u.AIUsage.LastReset),
		u.Stats.NotesUploaded, u.Stats.RatingsReceived, u.Stats.PositiveRatings,
		u.Stats.StudySessions, u.Stats.StudySeconds, u.Stats.FlashcardsReviewed,
		u.Stats.SummariesGenerated, u.Stats.FlashcardSetsMade,
		u.UpdatedAt.UnixMilli(),
		u.ID, u.Version, u.XP,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, u.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, u.ID)
		}
		return domain.ErrVersionConflict
	}

	for _, b := range m.NewBadges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)`,
			u.ID, b.BadgeID, b.EarnedAt.UnixMilli(),
		); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrVersionConflict
			}
			return fmt.Errorf("insert badge %s: %w", b.BadgeID, err)
		}
	}

	for _, s := range u.Stats.Subjects {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_subjects (user_id, subject) VALUES (?, ?)`, u.ID, s,
		); err != nil {
			return fmt.Errorf("insert subject: %w", err)
		}
	}

	if m.FavoriteAdd != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO favorite_notes (user_id, note_id, added_at) VALUES (?, ?, ?)`,
			u.ID, m.FavoriteAdd, u.UpdatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("add favorite: %w", err)
		}
	}
	if m.FavoriteRemove != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM favorite_notes WHERE user_id = ? AND note_id = ?`, u.ID, m.FavoriteRemove,
		); err != nil {
			return fmt.Errorf("remove favorite: %w", err)
		}
	}

	if a := m.Activity; a != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_log (user_id, type, description, xp_earned, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			u.ID, string(a.Type), a.Description, a.XPEarned, a.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("append activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	u.Version++
	return nil
}

// SweepCooldowns deletes cooldown rows older than before. Rows that old can
// no longer throttle anything.
func (d *DB) SweepCooldowns(ctx context.Context, before time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM study_cooldowns WHERE completed_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func scanUser(s scanner) (*domain.User, error) {
	var (
		u                    domain.User
		streakLast, aiReset  sql.NullInt64
		createdAt, updatedAt int64
	)
	err := s.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.XP, &u.Level,
		&u.Streak.Current, &u.Streak.Longest, &streakLast,
		&u.AIUsage.SummaryUsed, &u.AIUsage.FlashcardUsed, &aiReset,
		&u.Stats.NotesUploaded, &u.Stats.RatingsReceived, &u.Stats.PositiveRatings,
		&u.Stats.StudySessions, &u.Stats.StudySeconds,
		&u.Stats.FlashcardsReviewed, &u.Stats.SummariesGenerated, &u.Stats.FlashcardSetsMade,
		&u.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Streak.LastActivity = fromNullMillis(streakLast)
	u.AIUsage.LastReset = fromNullMillis(aiReset)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
