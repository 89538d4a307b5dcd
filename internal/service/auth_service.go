package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kidnector/internal/backend"
	"kidnector/internal/models"
	"kidnector/internal/repository"
	"kidnector/internal/security"
	"kidnector/internal/validation"
)

// ResendCooldown is the minimum gap between verification emails to one address
const ResendCooldown = 60 * time.Second

// AuthService handles sign-up, sign-in and the persisted session
type AuthService struct {
	client     *backend.Client
	familyRepo *repository.FamilyRepository
	sessions   *repository.SessionRepository
	email      *EmailService
	resend     *security.Cooldown
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service. sessions may be nil, in which
// case nothing outlives the process.
func NewAuthService(client *backend.Client, familyRepo *repository.FamilyRepository, sessions *repository.SessionRepository, email *EmailService, logger *zap.Logger) *AuthService {
	return &AuthService{
		client:     client,
		familyRepo: familyRepo,
		sessions:   sessions,
		email:      email,
		resend:     security.NewCooldown(ResendCooldown),
		logger:     logger,
		now:        time.Now,
	}
}

// SignUpInput is the parent registration form
type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	ParentName      string
	Timezone        string
}

// SignUpResult is the outcome of a registration
type SignUpResult struct {
	User   *models.User
	Family *models.Family
	// NeedsConfirmation is set when the project requires the email to be
	// verified before the first sign-in
	NeedsConfirmation bool
}

// SignUp registers a parent and creates the family with a fresh trial
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	email := strings.TrimSpace(in.Email)
	parentName := strings.TrimSpace(in.ParentName)

	if err := validate(
		validation.ValidateEmail(email),
		validation.ValidatePassword(in.Password),
		validation.ValidatePasswordMatch(in.Password, in.ConfirmPassword),
		validation.ValidateParentName(parentName),
	); err != nil {
		return nil, err
	}

	timezone, err := resolveTimezone(in.Timezone)
	if err != nil {
		return nil, err
	}

	res, err := s.client.Auth().SignUp(ctx, email, in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	family, err := s.familyRepo.CreateFamily(ctx, models.NewFamily{
		ID:                  res.User.ID,
		Email:               email,
		ParentName:          parentName,
		SubscriptionStatus:  models.SubscriptionTrial,
		TrialEndsAt:         s.now().Add(models.TrialLength).UTC(),
		Timezone:            timezone,
		OnboardingCompleted: false,
	})
	if err != nil {
		return nil, err
	}

	if err := s.email.SendWelcomeEmail(ctx, email, parentName); err != nil {
		s.logger.Warn("failed to send welcome email", zap.String("to", email), zap.Error(err))
	}

	if res.Session != nil {
		s.persist(ctx, res.Session)
	}

	return &SignUpResult{
		User:              res.User,
		Family:            family,
		NeedsConfirmation: res.Session == nil,
	}, nil
}

// SignIn authenticates a parent with email and password
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)

	var passwordErr error
	if password == "" {
		passwordErr = validation.ValidationError{Field: "password", Message: "Password is required"}
	}
	if err := validate(validation.ValidateEmail(email), passwordErr); err != nil {
		return nil, err
	}

	session, err := s.client.Auth().SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	s.persist(ctx, session)
	return session, nil
}

// SignOut ends the session. The persisted session is removed even when the
// backend could not be reached.
func (s *AuthService) SignOut(ctx context.Context) error {
	remoteErr := s.client.Auth().SignOut(ctx)

	if s.sessions != nil {
		if err := s.sessions.Clear(ctx); err != nil {
			return errors.Join(remoteErr, err)
		}
	}

	if remoteErr != nil {
		return fmt.Errorf("failed to sign out: %w", remoteErr)
	}
	return nil
}

// RestoreSession loads the persisted session and hands it to the backend
// client, refreshing it when the access token has expired. It returns nil
// without error when there is nothing usable to restore.
func (s *AuthService) RestoreSession(ctx context.Context) (*models.Session, error) {
	if s.sessions == nil {
		return nil, nil
	}

	stored, err := s.sessions.Load(ctx)
	if err != nil {
		s.logger.Warn("discarding unreadable stored session", zap.Error(err))
		_ = s.sessions.Clear(ctx)
		return nil, nil
	}
	if stored == nil {
		return nil, nil
	}

	if err := s.client.Auth().SetSession(stored); err != nil {
		_ = s.sessions.Clear(ctx)
		return nil, nil
	}

	if s.now().Before(stored.ExpiresAt) {
		return s.client.Auth().Session(), nil
	}

	refreshed, err := s.client.Auth().RefreshSession(ctx)
	if err != nil {
		if KindOf(err) == KindNetwork {
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}
		s.logger.Info("stored session could not be refreshed, signing out", zap.Error(err))
		_ = s.SignOut(ctx)
		return nil, nil
	}

	s.persist(ctx, refreshed)
	return refreshed, nil
}

// PersistSession writes the client's current session to the secure store,
// picking up tokens refreshed during the last calls
func (s *AuthService) PersistSession(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	current := s.client.Auth().Session()
	if current == nil {
		return s.sessions.Clear(ctx)
	}
	return s.sessions.Save(ctx, current)
}

func (s *AuthService) persist(ctx context.Context, session *models.Session) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}
}

// ResendVerification sends the sign-up confirmation email again, at most
// once per ResendCooldown for each address
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}

	key := strings.ToLower(email)
	if ok, left := s.resend.Allow(key); !ok {
		return &ResendCooldownError{Remaining: left}
	}

	if err := s.client.Auth().Resend(ctx, "signup", email); err != nil {
		s.resend.Reset(key)
		return fmt.Errorf("failed to resend verification email: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user as the auth API reports it
func (s *AuthService) CurrentUser(ctx context.Context) (*models.User, error) {
	if s.client.Auth().Session() == nil {
		return nil, ErrNotAuthenticated
	}
	user, err := s.client.Auth().GetUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// resolveTimezone validates an IANA name, defaulting to the local zone
func resolveTimezone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = time.Local.String()
		if tz == "Local" || tz == "" {
			tz = "UTC"
		}
		return tz, nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", validation.ValidationError{Field: "timezone", Message: "Please choose a valid timezone"}
	}
	return tz, nil
}
