package sqlite

import (
	"context"
	"fmt"

	"github.com/eduguardian/guardian/internal/domain"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// SyncCatalog upserts the badge catalog and removes definitions that are no
// longer shipped. Earned badges are kept even if their definition goes away.
func (d *DB) SyncCatalog(ctx context.Context, defs []domain.BadgeDef) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM badges`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	for i, b := range defs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO badges (id, name, description, icon, tier, category, xp_reward, display_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Name, b.Description, b.Icon, string(b.Tier), string(b.Category), b.XPReward, i,
		); err != nil {
			return fmt.Errorf("insert badge %s: %w", b.ID, err)
		}
	}
	return tx.Commit()
}

// ListCatalog returns the synced catalog in display order.
func (d *DB) ListCatalog(ctx context.Context) ([]domain.BadgeDef, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, description, icon, tier, category, xp_reward
		 FROM badges ORDER BY display_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BadgeDef
	for rows.Next() {
		var b domain.BadgeDef
		var tier, cat string
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &tier, &cat, &b.XPReward); err != nil {
			return nil, err
		}
		b.Tier = domain.BadgeTier(tier)
		b.Category = domain.BadgeCategory(cat)
		out = append(out, b)
	}
	return out, rows.Err()
}

// BadgeHolders returns how many users hold each catalog badge.
// Badges nobody holds are reported as 0.
func (d *DB) BadgeHolders(ctx context.Context) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT b.id, COUNT(ub.user_id)
		 FROM badges b LEFT JOIN user_badges ub ON ub.badge_id = b.id
		 GROUP BY b.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
