package repository

import (
	"context"
	"fmt"

	"kidnector/internal/backend"
	"kidnector/internal/models"
)

const familiesTable = "families"

// FamilyRepository handles backend operations for families
type FamilyRepository struct {
	client *backend.Client
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(client *backend.Client) *FamilyRepository {
	return &FamilyRepository{client: client}
}

// CreateFamily inserts the family row for a newly registered parent
func (r *FamilyRepository) CreateFamily(ctx context.Context, family models.NewFamily) (*models.Family, error) {
	if err := validateID("family", family.ID); err != nil {
		return nil, err
	}

	var created models.Family
	if err := r.client.From(familiesTable).Insert(family).Single().Execute(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}
	return &created, nil
}

// GetFamily retrieves a family by ID; it returns nil when there is none
func (r *FamilyRepository) GetFamily(ctx context.Context, familyID string) (*models.Family, error) {
	if err := validateID("family", familyID); err != nil {
		return nil, err
	}

	var family models.Family
	err := r.client.From(familiesTable).Select("*").Eq("id", familyID).Single().Execute(ctx, &family)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return &family, nil
}

// GetSubscription retrieves only the access-related columns of a family
func (r *FamilyRepository) GetSubscription(ctx context.Context, familyID string) (*models.Subscription, error) {
	if err := validateID("family", familyID); err != nil {
		return nil, err
	}

	var sub models.Subscription
	err := r.client.From(familiesTable).
		Select("subscription_status, trial_ends_at, subscription_expires_at").
		Eq("id", familyID).
		Single().
		Execute(ctx, &sub)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// CompleteOnboarding marks the family as done with first-run setup
func (r *FamilyRepository) CompleteOnboarding(ctx context.Context, familyID string) error {
	return r.update(ctx, familyID, map[string]any{"onboarding_completed": true})
}

// UpdateTimezone stores the family's IANA timezone
func (r *FamilyRepository) UpdateTimezone(ctx context.Context, familyID, timezone string) error {
	return r.update(ctx, familyID, map[string]any{"timezone": timezone})
}

func (r *FamilyRepository) update(ctx context.Context, familyID string, values map[string]any) error {
	if err := validateID("family", familyID); err != nil {
		return err
	}
	if err := r.client.From(familiesTable).Update(values).Eq("id", familyID).Execute(ctx, nil); err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	return nil
}
