package cli

import (
	"fmt"
	"strings"

	"github.com/eduguardian/guardian/internal/app/progression"
)

// ─── XP Bar ─────────────────────────────────────────────────────────────────
// Renders progress through the current level:
// [=============>................]  45% | 450 / 1000 XP

const barWidth = 30 // Characters for the progress bar

func xpBar(p progression.LevelProgress) string {
	pct := p.ProgressPct
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	// Build the bar: [=======>............]
	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	var bar string
	if filled == barWidth {
		bar = strings.Repeat("=", filled)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	} else {
		bar = strings.Repeat(".", barWidth)
	}

	span := p.XPIntoLevel + p.XPToNextLevel
	return fmt.Sprintf("[%s] %3.0f%% | %d / %d XP", bar, pct, p.XPIntoLevel, span)
}
