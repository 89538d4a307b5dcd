package repository

import (
	"context"
	"errors"
	"fmt"

	"kidnector/internal/backend"
	"kidnector/internal/models"
)

const pushTokensTable = "push_tokens"

// PushTokenRepository handles device registrations
type PushTokenRepository struct {
	client *backend.Client
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(client *backend.Client) *PushTokenRepository {
	return &PushTokenRepository{client: client}
}

// Register stores a device token, reactivating it if it was seen before
func (r *PushTokenRepository) Register(ctx context.Context, token models.NewPushToken) error {
	if err := validateID("family", token.FamilyID); err != nil {
		return err
	}
	if token.ExpoPushToken == "" {
		return errors.New("push token is required")
	}

	token.IsActive = true
	if err := r.client.From(pushTokensTable).Upsert(token, "expo_push_token").Execute(ctx, nil); err != nil {
		return fmt.Errorf("failed to register push token: %w", err)
	}
	return nil
}

// Deactivate stops notifications to a device token
func (r *PushTokenRepository) Deactivate(ctx context.Context, expoPushToken string) error {
	err := r.client.From(pushTokensTable).
		Update(map[string]any{"is_active": false}).
		Eq("expo_push_token", expoPushToken).
		Execute(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to deactivate push token: %w", err)
	}
	return nil
}
