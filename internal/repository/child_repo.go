package repository

import (
	"context"
	"fmt"

	"kidnector/internal/backend"
	"kidnector/internal/models"
)

const childrenTable = "children"

// ChildRepository handles backend operations for children
type ChildRepository struct {
	client *backend.Client
}

// NewChildRepository creates a new child repository
func NewChildRepository(client *backend.Client) *ChildRepository {
	return &ChildRepository{client: client}
}

// CreateChild adds a child profile to a family
func (r *ChildRepository) CreateChild(ctx context.Context, child models.NewChild) (*models.Child, error) {
	if err := validateID("family", child.FamilyID); err != nil {
		return nil, err
	}

	var created models.Child
	if err := r.client.From(childrenTable).Insert(child).Single().Execute(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	return &created, nil
}

// GetChild retrieves a child by ID; it returns nil when there is none
func (r *ChildRepository) GetChild(ctx context.Context, childID string) (*models.Child, error) {
	if err := validateID("child", childID); err != nil {
		return nil, err
	}

	var child models.Child
	err := r.client.From(childrenTable).Select("*").Eq("id", childID).Single().Execute(ctx, &child)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return &child, nil
}

// GetFamilyChildren retrieves all children in a family, oldest profile first
func (r *ChildRepository) GetFamilyChildren(ctx context.Context, familyID string) ([]models.Child, error) {
	if err := validateID("family", familyID); err != nil {
		return nil, err
	}

	var children []models.Child
	err := r.client.From(childrenTable).
		Select("*").
		Eq("family_id", familyID).
		Order("created_at", true).
		Execute(ctx, &children)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	return children, nil
}

// UpdateChild changes the editable columns of a child
func (r *ChildRepository) UpdateChild(ctx context.Context, childID string, update models.ChildUpdate) (*models.Child, error) {
	if err := validateID("child", childID); err != nil {
		return nil, err
	}

	var child models.Child
	err := r.client.From(childrenTable).Update(update).Eq("id", childID).Single().Execute(ctx, &child)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update child: %w", err)
	}
	return &child, nil
}
