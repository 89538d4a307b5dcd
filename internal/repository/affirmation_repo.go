package repository

import (
	"context"
	"fmt"
	"strconv"

	"kidnector/internal/backend"
	"kidnector/internal/models"
)

const (
	affirmationsTable       = "affirmations"
	dailyAffirmationFunc    = "get_daily_affirmation"
	customAffirmationsTable = "custom_affirmations"
)

// AffirmationRepository reads and seeds the affirmation catalog
type AffirmationRepository struct {
	client *backend.Client
}

// NewAffirmationRepository creates a new affirmation repository
func NewAffirmationRepository(client *backend.Client) *AffirmationRepository {
	return &AffirmationRepository{client: client}
}

// GetDailyAffirmation asks the backend to pick today's affirmation for a child.
// It returns nil when the function has nothing to offer.
func (r *AffirmationRepository) GetDailyAffirmation(ctx context.Context, childID string) (*models.DailyAffirmation, error) {
	if err := validateID("child", childID); err != nil {
		return nil, err
	}

	var rows []models.DailyAffirmation
	if err := r.client.RPC(ctx, dailyAffirmationFunc, map[string]string{"p_child_id": childID}, &rows); err != nil {
		return nil, fmt.Errorf("failed to get daily affirmation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetForAge returns the newest active affirmation suitable for age, or nil
func (r *AffirmationRepository) GetForAge(ctx context.Context, age int) (*models.Affirmation, error) {
	a := strconv.Itoa(age)

	var aff *models.Affirmation
	err := r.client.From(affirmationsTable).
		Select("*").
		Eq("is_active", "true").
		Lte("age_min", a).
		Gte("age_max", a).
		Order("created_at", false).
		Limit(1).
		MaybeSingle().
		Execute(ctx, &aff)
	if err != nil {
		return nil, fmt.Errorf("failed to query affirmations: %w", err)
	}
	return aff, nil
}

// HasAny reports whether the catalog holds any row, active or not
func (r *AffirmationRepository) HasAny(ctx context.Context) (bool, error) {
	var ids []struct {
		ID string `json:"id"`
	}
	if err := r.client.From(affirmationsTable).Select("id").Limit(1).Execute(ctx, &ids); err != nil {
		return false, fmt.Errorf("failed to check affirmations: %w", err)
	}
	return len(ids) > 0, nil
}

// CountActive returns the number of active catalog entries
func (r *AffirmationRepository) CountActive(ctx context.Context) (int, error) {
	var ids []struct {
		ID string `json:"id"`
	}
	if err := r.client.From(affirmationsTable).Select("id").Eq("is_active", "true").Execute(ctx, &ids); err != nil {
		return 0, fmt.Errorf("failed to count affirmations: %w", err)
	}
	return len(ids), nil
}

// SeedCatalog inserts catalog rows in one request
func (r *AffirmationRepository) SeedCatalog(ctx context.Context, rows []models.NewAffirmation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.client.From(affirmationsTable).Insert(rows).Execute(ctx, nil); err != nil {
		return fmt.Errorf("failed to seed affirmations: %w", err)
	}
	return nil
}

// CustomAffirmationRepository handles family-written affirmations
type CustomAffirmationRepository struct {
	client *backend.Client
}

// NewCustomAffirmationRepository creates a new custom affirmation repository
func NewCustomAffirmationRepository(client *backend.Client) *CustomAffirmationRepository {
	return &CustomAffirmationRepository{client: client}
}

// Create adds a custom affirmation for a family or one of its children
func (r *CustomAffirmationRepository) Create(ctx context.Context, aff models.NewCustomAffirmation) (*models.CustomAffirmation, error) {
	if err := validateID("family", aff.FamilyID); err != nil {
		return nil, err
	}
	if aff.ChildID != nil {
		if err := validateID("child", *aff.ChildID); err != nil {
			return nil, err
		}
	}

	var created models.CustomAffirmation
	if err := r.client.From(customAffirmationsTable).Insert(aff).Single().Execute(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create custom affirmation: %w", err)
	}
	return &created, nil
}

// ListForFamily returns the active custom affirmations of a family, newest first
func (r *CustomAffirmationRepository) ListForFamily(ctx context.Context, familyID string) ([]models.CustomAffirmation, error) {
	if err := validateID("family", familyID); err != nil {
		return nil, err
	}

	var rows []models.CustomAffirmation
	err := r.client.From(customAffirmationsTable).
		Select("*").
		Eq("family_id", familyID).
		Eq("is_active", "true").
		Order("created_at", false).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom affirmations: %w", err)
	}
	return rows, nil
}
