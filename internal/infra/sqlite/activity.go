package sqlite

import (
	"context"

	"github.com/eduguardian/guardian/internal/domain"
)

// ─── Activity Log ───────────────────────────────────────────────────────────

// ListActivity returns a user's newest activity entries first.
func (d *DB) ListActivity(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, type, description, xp_earned, created_at
		 FROM activity_log WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var typ string
		var at int64
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Description, &e.XPEarned, &at); err != nil {
			return nil, err
		}
		e.Type = domain.ActivityType(typ)
		e.CreatedAt = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearActivity deletes a user's whole activity log.
func (d *DB) ClearActivity(ctx context.Context, userID string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM activity_log WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
