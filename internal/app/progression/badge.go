package progression

import (
	"fmt"
	"time"

	"github.com/eduguardian/guardian/internal/domain"
)

// Catalog is the read-only badge reference data plus the criteria registry,
// safe to share across goroutines once built.
type Catalog struct {
	defs     []domain.BadgeDef
	index    map[string]int
	criteria map[string]Criterion
}

// NewCatalog builds a catalog. Definitions keep their order, which is the
// order badges are evaluated and returned in. Every definition needs a
// criterion registered under its ID.
func NewCatalog(defs []domain.BadgeDef, criteria map[string]Criterion) (*Catalog, error) {
	c := &Catalog{
		defs:     make([]domain.BadgeDef, 0, len(defs)),
		index:    make(map[string]int, len(defs)),
		criteria: make(map[string]Criterion, len(criteria)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("badge %q: empty id", d.Name)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("badge %s: duplicate id", d.ID)
		}
		if d.XPReward < 0 {
			return nil, fmt.Errorf("badge %s: negative xp reward", d.ID)
		}
		cr, ok := criteria[d.ID]
		if !ok || cr == nil {
			return nil, fmt.Errorf("badge %s: no criterion registered", d.ID)
		}
		c.index[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
		c.criteria[d.ID] = cr
	}
	return c, nil
}

// DefaultCatalog returns the built-in badge catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(AllBadges(), DefaultCriteria())
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns a copy of the catalog in display order.
func (c *Catalog) Definitions() []domain.BadgeDef {
	out := make([]domain.BadgeDef, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns one definition.
func (c *Catalog) Get(id string) (domain.BadgeDef, error) {
	i, ok := c.index[id]
	if !ok {
		return domain.BadgeDef{}, fmt.Errorf("%w: %s", domain.ErrBadgeNotFound, id)
	}
	return c.defs[i], nil
}

// Criterion returns the predicate registered for a badge.
func (c *Catalog) Criterion(id string) (Criterion, bool) {
	cr, ok := c.criteria[id]
	return cr, ok
}

// Len returns the number of badges.
func (c *Catalog) Len() int { return len(c.defs) }

// ─── Evaluator ──────────────────────────────────────────────────────────────

// Award is the outcome of one evaluation.
type Award struct {
	Badges []domain.BadgeDef // in catalog order
	XP     int64             // sum of rewards, still to be applied
}

// Evaluator decides which badges a transition newly earns.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator creates an evaluator over a catalog.
func NewEvaluator(c *Catalog) Evaluator {
	return Evaluator{catalog: c}
}

// Evaluate checks every badge the user does not hold yet, appends the newly
// earned ones to u.Badges and returns them with their summed XP reward.
// Awarding is a one-time transition: a held badge is never returned again,
// whatever its criterion says.
func (e Evaluator) Evaluate(u *domain.User, ev domain.Event, pendingXP int64, now time.Time) Award {
	var award Award
	ctx := EvalContext{User: u, Event: ev, PendingXP: pendingXP}
	for _, def := range e.catalog.defs {
		if u.HasBadge(def.ID) {
			continue
		}
		if !e.catalog.criteria[def.ID].Met(ctx) {
			continue
		}
		u.Badges = append(u.Badges, domain.EarnedBadge{BadgeID: def.ID, EarnedAt: now})
		award.Badges = append(award.Badges, def)
		award.XP += def.XPReward
	}
	return award
}

// ─── Badge Definitions ──────────────────────────────────────────────────────

// AllBadges returns the built-in catalog in display order.
func AllBadges() []domain.BadgeDef {
	return []domain.BadgeDef{
		// ── Uploads ────────────────────────────────────────────────────
		{ID: "first_upload", Name: "First Note", Description: "Upload your first note",
			Icon: "📝", Tier: domain.TierBronze, Category: domain.CatUpload, XPReward: 50},
		{ID: "uploads_10", Name: "Note Taker", Description: "Upload 10 notes",
			Icon: "📚", Tier: domain.TierSilver, Category: domain.CatUpload, XPReward: 150},
		{ID: "uploads_50", Name: "Librarian", Description: "Upload 50 notes",
			Icon: "🏛️", Tier: domain.TierGold, Category: domain.CatUpload, XPReward: 500},
		{ID: "multi_subject", Name: "Polymath", Description: "Share notes in 3 different subjects",
			Icon: "🧭", Tier: domain.TierSilver, Category: domain.CatUpload, XPReward: 200},

		// ── AI ─────────────────────────────────────────────────────────
		{ID: "first_summary", Name: "Summarizer", Description: "Generate your first AI summary",
			Icon: "🤖", Tier: domain.TierBronze, Category: domain.CatAI, XPReward: 25},
		{ID: "first_flashcards", Name: "Card Maker", Description: "Generate your first AI flashcard set",
			Icon: "🃏", Tier: domain.TierBronze, Category: domain.CatAI, XPReward: 25},
		{ID: "ai_explorer", Name: "AI Explorer", Description: "Use AI generation 25 times",
			Icon: "🚀", Tier: domain.TierGold, Category: domain.CatAI, XPReward: 300},

		// ── Streaks ────────────────────────────────────────────────────
		{ID: "streak_3", Name: "Warming Up", Description: "Study 3 days in a row",
			Icon: "🔥", Tier: domain.TierBronze, Category: domain.CatStreak, XPReward: 50},
		{ID: "streak_7", Name: "Week Warrior", Description: "Study 7 days in a row",
			Icon: "⚡", Tier: domain.TierSilver, Category: domain.CatStreak, XPReward: 200},
		{ID: "streak_30", Name: "Unstoppable", Description: "Study 30 days in a row",
			Icon: "💎", Tier: domain.TierPlatinum, Category: domain.CatStreak, XPReward: 1000},

		// ── Achievements ───────────────────────────────────────────────
		{ID: "first_study", Name: "First Steps", Description: "Complete your first study session",
			Icon: "🎯", Tier: domain.TierBronze, Category: domain.CatAchievement, XPReward: 25},
		{ID: "deep_focus", Name: "Deep Focus", Description: "Study a note for an hour in one session",
			Icon: "🧠", Tier: domain.TierSilver, Category: domain.CatAchievement, XPReward: 100},
		{ID: "flashcard_sprint", Name: "Flashcard Sprint", Description: "Review 50 flashcards in one session",
			Icon: "🏃", Tier: domain.TierSilver, Category: domain.CatAchievement, XPReward: 100},
		{ID: "dedicated_learner", Name: "Dedicated Learner", Description: "Complete 20 sessions with a 14-day best streak",
			Icon: "📖", Tier: domain.TierGold, Category: domain.CatAchievement, XPReward: 400},
		{ID: "well_rated", Name: "Crowd Favorite", Description: "Receive 10 positive ratings",
			Icon: "⭐", Tier: domain.TierGold, Category: domain.CatAchievement, XPReward: 300},
		{ID: "level_5", Name: "Rising Scholar", Description: "Reach level 5",
			Icon: "🎓", Tier: domain.TierGold, Category: domain.CatAchievement, XPReward: 250},
		{ID: "level_10", Name: "Master Scholar", Description: "Reach level 10",
			Icon: "👑", Tier: domain.TierPlatinum, Category: domain.CatAchievement, XPReward: 1000},
	}
}

// DefaultCriteria is the predicate registry for AllBadges, keyed by badge ID.
func DefaultCriteria() map[string]Criterion {
	return map[string]Criterion{
		"first_upload":  StatAtLeast{StatNotesUploaded, 1},
		"uploads_10":    StatAtLeast{StatNotesUploaded, 10},
		"uploads_50":    StatAtLeast{StatNotesUploaded, 50},
		"multi_subject": StatAtLeast{StatDistinctSubjects, 3},

		"first_summary":    StatAtLeast{StatSummaries, 1},
		"first_flashcards": StatAtLeast{StatFlashcardSets, 1},
		"ai_explorer":      StatAtLeast{StatAIGenerations, 25},

		"streak_3":  StatAtLeast{StatCurrentStreak, 3},
		"streak_7":  StatAtLeast{StatCurrentStreak, 7},
		"streak_30": StatAtLeast{StatCurrentStreak, 30},

		"first_study":      StatAtLeast{StatStudySessions, 1},
		"deep_focus":       SessionAtLeast{Duration: time.Hour},
		"flashcard_sprint": FlashcardsInSession{Min: 50},

		"dedicated_learner": AllOf{
			StatAtLeast{StatStudySessions, 20},
			StatAtLeast{StatLongestStreak, 14},
		},

		"well_rated": StatAtLeast{StatPositiveRatings, 10},
		"level_5":    StatAtLeast{StatLevel, 5},
		"level_10":   StatAtLeast{StatLevel, 10},
	}
}
