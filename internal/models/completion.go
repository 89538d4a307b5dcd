package models

import "time"

// CompletionStatus is the approval state of a day's submission
type CompletionStatus string

const (
	StatusPending       CompletionStatus = "pending"
	StatusApproved      CompletionStatus = "approved"
	StatusRedoRequested CompletionStatus = "redo_requested"
)

// RecordingType is the media kind of a submission
type RecordingType string

const (
	RecordingAudio RecordingType = "audio"
	RecordingVideo RecordingType = "video"
)

// Extension returns the file extension used for uploaded recordings
func (t RecordingType) Extension() string {
	if t == RecordingVideo {
		return "mp4"
	}
	return "m4a"
}

// ContentType returns the MIME type used for uploaded recordings
func (t RecordingType) ContentType() string {
	if t == RecordingVideo {
		return "video/mp4"
	}
	return "audio/m4a"
}

// Valid reports whether t is a known recording type
func (t RecordingType) Valid() bool {
	return t == RecordingAudio || t == RecordingVideo
}

// DateLayout is the format of completion_date values
const DateLayout = "2006-01-02"

// Completion is one day's recorded-affirmation submission
type Completion struct {
	ID                       string           `json:"id"`
	ChildID                  string           `json:"child_id"`
	FamilyID                 string           `json:"family_id"`
	AffirmationID            *string          `json:"affirmation_id"`
	CustomAffirmationText    *string          `json:"custom_affirmation_text"`
	RecordingURL             *string          `json:"recording_url"`
	RecordingType            RecordingType    `json:"recording_type"`
	RecordingDurationSeconds *int             `json:"recording_duration_seconds"`
	SubmittedAt              time.Time        `json:"submitted_at"`
	Status                   CompletionStatus `json:"status"`
	RedoReason               *string          `json:"redo_reason"`
	ApprovedAt               *time.Time       `json:"approved_at"`
	ApprovedBy               *string          `json:"approved_by"`
	ScreenTimeEarnedMinutes  *int             `json:"screen_time_earned_minutes"`
	CompletionDate           string           `json:"completion_date"`
}

// NewCompletion is the insert shape for a submission
type NewCompletion struct {
	ChildID                  string        `json:"child_id"`
	FamilyID                 string        `json:"family_id"`
	AffirmationID            *string       `json:"affirmation_id,omitempty"`
	CustomAffirmationText    *string       `json:"custom_affirmation_text,omitempty"`
	RecordingURL             string        `json:"recording_url"`
	RecordingType            RecordingType `json:"recording_type"`
	RecordingDurationSeconds int           `json:"recording_duration_seconds"`
	CompletionDate           string        `json:"completion_date,omitempty"`
}

// ChildSummary is the embedded child columns of a pending completion
type ChildSummary struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// AffirmationSummary is the embedded affirmation columns of a pending completion
type AffirmationSummary struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// PendingCompletion is a completion joined with its child and affirmation
type PendingCompletion struct {
	Completion
	Child       *ChildSummary       `json:"children"`
	Affirmation *AffirmationSummary `json:"affirmations"`
}

// AffirmationText returns what the child was asked to say
func (p PendingCompletion) AffirmationText() string {
	if p.Affirmation != nil {
		return p.Affirmation.Text
	}
	if p.CustomAffirmationText != nil {
		return *p.CustomAffirmationText
	}
	return ""
}
