package models

import "time"

// FallbackAffirmationText is shown when the catalog has nothing for a child
const FallbackAffirmationText = "I am capable of achieving great things today!"

// Affirmation is a catalog sentence a child recites
type Affirmation struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	AgeMin     int       `json:"age_min"`
	AgeMax     int       `json:"age_max"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAffirmation is the insert shape for the catalog seed
type NewAffirmation struct {
	Text     string `json:"text"`
	AgeMin   int    `json:"age_min"`
	AgeMax   int    `json:"age_max"`
	Category string `json:"category"`
}

// DailyAffirmation is a row returned by the get_daily_affirmation function
type DailyAffirmation struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// IsFallback reports whether the affirmation came from the built-in default
func (a DailyAffirmation) IsFallback() bool {
	return a.ID == ""
}

var categoryEmojis = map[string]string{
	"confidence": "💪",
	"kindness":   "💝",
	"gratitude":  "🙏",
	"growth":     "🌱",
	"courage":    "🦁",
	"custom":     "⭐",
}

// CategoryEmoji returns the badge emoji for an affirmation category
func CategoryEmoji(category string) string {
	if category == "" {
		category = "confidence"
	}
	if emoji, ok := categoryEmojis[category]; ok {
		return emoji
	}
	return "✨"
}

// CustomAffirmation is a family-written affirmation, optionally for one child
type CustomAffirmation struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	ChildID   *string   `json:"child_id"`
	Text      string    `json:"text"`
	IsActive  bool      `json:"is_active"`
	UseCount  int       `json:"use_count"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCustomAffirmation is the insert shape for a custom affirmation
type NewCustomAffirmation struct {
	FamilyID string  `json:"family_id"`
	ChildID  *string `json:"child_id,omitempty"`
	Text     string  `json:"text"`
}
