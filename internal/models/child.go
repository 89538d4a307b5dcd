package models

import "time"

// DefaultScreenTimeMinutes is the daily allowance given to a new child
const DefaultScreenTimeMinutes = 60

// Child represents a child profile managed by a family
type Child struct {
	ID                     string    `json:"id"`
	FamilyID               string    `json:"family_id"`
	Name                   string    `json:"name"`
	Age                    int       `json:"age"`
	Avatar                 string    `json:"avatar"`
	DailyScreenTimeMinutes int       `json:"daily_screen_time_minutes"`
	ReminderTime           string    `json:"reminder_time"`
	ReminderEnabled        bool      `json:"reminder_enabled"`
	CurrentStreak          int       `json:"current_streak"`
	LongestStreak          int       `json:"longest_streak"`
	TotalCompletions       int       `json:"total_completions"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewChild is the insert shape for a child row; streak columns are owned by the backend
type NewChild struct {
	FamilyID               string `json:"family_id"`
	Name                   string `json:"name"`
	Age                    int    `json:"age"`
	Avatar                 string `json:"avatar,omitempty"`
	DailyScreenTimeMinutes int    `json:"daily_screen_time_minutes,omitempty"`
}

// ChildUpdate holds the editable child columns; nil fields are left untouched
type ChildUpdate struct {
	Name                   *string `json:"name,omitempty"`
	Age                    *int    `json:"age,omitempty"`
	Avatar                 *string `json:"avatar,omitempty"`
	DailyScreenTimeMinutes *int    `json:"daily_screen_time_minutes,omitempty"`
	ReminderTime           *string `json:"reminder_time,omitempty"`
	ReminderEnabled        *bool   `json:"reminder_enabled,omitempty"`
}
