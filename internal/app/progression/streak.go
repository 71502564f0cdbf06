package progression

import (
	"time"

	"github.com/eduguardian/guardian/internal/domain"
)

// StreakTracker counts consecutive calendar days of study.
// Days are calendar days in the tracker's location, not 24h spans,
// so studying at 23:00 and again at 08:00 next morning extends the streak.
// A missed day resets the streak silently on the next activity.
type StreakTracker struct {
	loc *time.Location
}

// NewStreakTracker creates a tracker for a location (nil means UTC).
func NewStreakTracker(loc *time.Location) StreakTracker {
	if loc == nil {
		loc = time.UTC
	}
	return StreakTracker{loc: loc}
}

// DaysBetween returns the number of calendar days from one instant to another.
// Negative when to is on an earlier day than from.
func (t StreakTracker) DaysBetween(from, to time.Time) int {
	return int(t.day(to).Sub(t.day(from)).Hours() / 24)
}

// day truncates to midnight of the local calendar date, expressed in UTC so
// DST transitions never produce 23h or 25h days.
func (t StreakTracker) day(ts time.Time) time.Time {
	y, m, d := ts.In(t.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RecordActivity applies one qualifying activity at the given instant.
//   - same day: no change
//   - next day: current+1
//   - gap > 1 day: current resets to 1
//   - earlier day (clock skew, backdated event): no-op
//
// Longest is kept at max(longest, current).
func (t StreakTracker) RecordActivity(u *domain.User, at time.Time) domain.Streak {
	s := &u.Streak

	if s.LastActivity.IsZero() {
		s.Current = 1
		s.Longest = max(s.Longest, 1)
		s.LastActivity = at
		return *s
	}

	days := t.DaysBetween(s.LastActivity, at)
	switch {
	case days < 0:
		return *s
	case days == 0:
		// same day
	case days == 1:
		s.Current++
	default:
		s.Current = 1
	}
	s.Longest = max(s.Longest, s.Current)
	s.LastActivity = at
	return *s
}
