package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kidnector/internal/database"
	"kidnector/internal/models"
	"kidnector/internal/security"
)

const sessionKey = "auth_session"

// SessionRepository persists the auth session in the local secure store
type SessionRepository struct {
	db     database.DBTX
	sealer *security.Sealer
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db database.DBTX, sealer *security.Sealer) *SessionRepository {
	return &SessionRepository{db: db, sealer: sealer}
}

// Load returns the stored session, or nil if none is stored
func (r *SessionRepository) Load(ctx context.Context) (*models.Session, error) {
	var sealed string
	query := "SELECT item_value FROM secure_store WHERE item_key = ?"
	err := r.db.QueryRowContext(ctx, query, sessionKey).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	plain, err := r.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Save stores session, replacing any previous one
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	if session == nil {
		return r.Clear(ctx)
	}

	plain, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := r.sealer.Seal(plain)
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertSecureItem(), sessionKey, sealed); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the stored session
func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM secure_store WHERE item_key = ?", sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
