package repository

import (
	"context"
	"fmt"
	"time"

	"kidnector/internal/backend"
	"kidnector/internal/models"
)

const (
	completionsTable = "completions"

	pendingSelect = "*, children(name, avatar), affirmations(text, category)"
)

// CompletionRepository handles backend operations for daily submissions
type CompletionRepository struct {
	client *backend.Client
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(client *backend.Client) *CompletionRepository {
	return &CompletionRepository{client: client}
}

// CreateCompletion inserts a new pending submission
func (r *CompletionRepository) CreateCompletion(ctx context.Context, c models.NewCompletion) (*models.Completion, error) {
	if err := validateIDs("child", c.ChildID, "family", c.FamilyID); err != nil {
		return nil, err
	}

	var created models.Completion
	if err := r.client.From(completionsTable).Insert(c).Single().Execute(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	return &created, nil
}

// GetTodayCompletion returns the child's completion for date, or nil if none exists
func (r *CompletionRepository) GetTodayCompletion(ctx context.Context, childID, date string) (*models.Completion, error) {
	if err := validateID("child", childID); err != nil {
		return nil, err
	}

	var c models.Completion
	err := r.client.From(completionsTable).
		Select("*").
		Eq("child_id", childID).
		Eq("completion_date", date).
		Single().
		Execute(ctx, &c)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get today's completion: %w", err)
	}
	return &c, nil
}

// GetCompletion retrieves a completion by ID; it returns nil when there is none
func (r *CompletionRepository) GetCompletion(ctx context.Context, completionID string) (*models.Completion, error) {
	if err := validateID("completion", completionID); err != nil {
		return nil, err
	}

	var c models.Completion
	err := r.client.From(completionsTable).Select("*").Eq("id", completionID).Single().Execute(ctx, &c)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}
	return &c, nil
}

// GetPendingCompletions returns the family's submissions awaiting review,
// newest first, with child and affirmation details embedded
func (r *CompletionRepository) GetPendingCompletions(ctx context.Context, familyID string) ([]models.PendingCompletion, error) {
	if err := validateID("family", familyID); err != nil {
		return nil, err
	}

	var rows []models.PendingCompletion
	err := r.client.From(completionsTable).
		Select(pendingSelect).
		Eq("family_id", familyID).
		Eq("status", string(models.StatusPending)).
		Order("submitted_at", false).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending completions: %w", err)
	}
	return rows, nil
}

// Approve marks a pending completion approved. It returns nil when no
// pending row with that ID exists.
func (r *CompletionRepository) Approve(ctx context.Context, completionID, approvedBy string, minutes int, at time.Time) (*models.Completion, error) {
	if err := validateIDs("completion", completionID, "approver", approvedBy); err != nil {
		return nil, err
	}

	return r.transition(ctx, completionID, models.StatusPending, map[string]any{
		"status":                     models.StatusApproved,
		"approved_at":                at.UTC(),
		"approved_by":                approvedBy,
		"screen_time_earned_minutes": minutes,
	})
}

// RequestRedo sends a pending completion back to the child. It returns nil
// when no pending row with that ID exists.
func (r *CompletionRepository) RequestRedo(ctx context.Context, completionID, reason string) (*models.Completion, error) {
	if err := validateID("completion", completionID); err != nil {
		return nil, err
	}

	var note any
	if reason != "" {
		note = reason
	}
	return r.transition(ctx, completionID, models.StatusPending, map[string]any{
		"status":      models.StatusRedoRequested,
		"redo_reason": note,
	})
}

// Resubmit replaces the recording of a redo-requested completion and puts it
// back into review. It returns nil when no such row exists.
func (r *CompletionRepository) Resubmit(ctx context.Context, completionID, recordingURL string, recordingType models.RecordingType, durationSeconds int, at time.Time) (*models.Completion, error) {
	if err := validateID("completion", completionID); err != nil {
		return nil, err
	}

	return r.transition(ctx, completionID, models.StatusRedoRequested, map[string]any{
		"status":                     models.StatusPending,
		"recording_url":              recordingURL,
		"recording_type":             recordingType,
		"recording_duration_seconds": durationSeconds,
		"submitted_at":               at.UTC(),
		"redo_reason":                nil,
	})
}

// transition updates a completion only while it is still in the from state
func (r *CompletionRepository) transition(ctx context.Context, completionID string, from models.CompletionStatus, values map[string]any) (*models.Completion, error) {
	var rows []models.Completion
	err := r.client.From(completionsTable).
		Update(values).
		Eq("id", completionID).
		Eq("status", string(from)).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to update completion: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetCompletedDates returns the dates between from and to (inclusive) on
// which the child had an approved completion
func (r *CompletionRepository) GetCompletedDates(ctx context.Context, childID, from, to string) ([]string, error) {
	if err := validateID("child", childID); err != nil {
		return nil, err
	}

	var rows []struct {
		CompletionDate string `json:"completion_date"`
	}
	err := r.client.From(completionsTable).
		Select("completion_date").
		Eq("child_id", childID).
		Eq("status", string(models.StatusApproved)).
		Gte("completion_date", from).
		Lte("completion_date", to).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed dates: %w", err)
	}

	dates := make([]string, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, row.CompletionDate)
	}
	return dates, nil
}
