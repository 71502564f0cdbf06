package domain

// BadgeTier is a cosmetic rarity tier with no gameplay effect.
type BadgeTier string

const (
	TierBronze   BadgeTier = "bronze"
	TierSilver   BadgeTier = "silver"
	TierGold     BadgeTier = "gold"
	TierPlatinum BadgeTier = "platinum"
)

// BadgeCategory groups badges by what earns them.
type BadgeCategory string

const (
	CatUpload      BadgeCategory = "upload"
	CatAI          BadgeCategory = "ai"
	CatStreak      BadgeCategory = "streak"
	CatAchievement BadgeCategory = "achievement"
)

// BadgeDef is catalog reference data. Criteria are registered separately,
// keyed by ID, so the definition stays serializable.
type BadgeDef struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Tier        BadgeTier     `json:"level"`
	Category    BadgeCategory `json:"category"`
	XPReward    int64         `json:"xp_reward"`
}
