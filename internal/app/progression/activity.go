package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduguardian/guardian/internal/domain"
)

// ActivityService reads and clears the per-user activity log.
// Entries are only ever appended by Engine transitions; clearing is the one
// explicit way to remove them.
type ActivityService struct {
	store domain.ProgressStore
}

// NewActivityService creates an activity service.
func NewActivityService(store domain.ProgressStore) *ActivityService {
	return &ActivityService{store: store}
}

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// List returns the newest entries first. limit <= 0 uses the default;
// larger values are capped.
func (a *ActivityService) List(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	if err := a.exists(ctx, userID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	entries, err := a.store.ListActivity(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list activity: %w", domain.ErrPersistence, err)
	}
	return entries, nil
}

// Clear removes the user's whole activity log and returns how many entries
// were deleted. XP, badges and streak are untouched.
func (a *ActivityService) Clear(ctx context.Context, userID string) (int64, error) {
	if err := a.exists(ctx, userID); err != nil {
		return 0, err
	}
	n, err := a.store.ClearActivity(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: clear activity: %w", domain.ErrPersistence, err)
	}
	return n, nil
}

func (a *ActivityService) exists(ctx context.Context, userID string) error {
	_, err := a.store.LoadUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("%w: load user: %w", domain.ErrPersistence, err)
	}
	return err
}
