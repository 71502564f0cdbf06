package progression

import "github.com/eduguardian/guardian/internal/domain"

// XPPerLevel is the flat XP width of every level.
const XPPerLevel int64 = 1000

// LevelForXP returns the level for a given XP total: floor(xp/1000)+1.
// Every call site derives level through here.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// XPForLevel returns the cumulative XP required to reach a level.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(level-1) * XPPerLevel
}

// XPResult is the outcome of ApplyXP.
type XPResult struct {
	NewXP     int64 `json:"new_xp"`
	NewLevel  int   `json:"new_level"`
	LeveledUp bool  `json:"leveled_up"`
}

// ApplyXP credits delta to the user and reconciles the stored level.
// A negative delta is rejected as a no-op: XP is never removed.
func ApplyXP(u *domain.User, delta int64) XPResult {
	prev := LevelForXP(u.XP)
	if delta < 0 {
		return XPResult{NewXP: u.XP, NewLevel: prev}
	}
	u.XP += delta
	u.Level = LevelForXP(u.XP)
	return XPResult{NewXP: u.XP, NewLevel: u.Level, LeveledUp: u.Level > prev}
}

// LevelProgress describes how far a user is through the current level.
type LevelProgress struct {
	Level         int     `json:"level"`
	XPIntoLevel   int64   `json:"xp_into_level"`
	XPToNextLevel int64   `json:"xp_to_next_level"`
	ProgressPct   float64 `json:"progress_pct"`
}

// ProgressFor computes level progress for an XP total.
func ProgressFor(xp int64) LevelProgress {
	level := LevelForXP(xp)
	into := xp - XPForLevel(level)
	if into < 0 {
		into = 0
	}
	return LevelProgress{
		Level:         level,
		XPIntoLevel:   into,
		XPToNextLevel: XPForLevel(level+1) - xp,
		ProgressPct:   float64(into) / float64(XPPerLevel) * 100,
	}
}
