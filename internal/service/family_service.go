package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kidnector/internal/avatar"
	"kidnector/internal/backend"
	"kidnector/internal/models"
	"kidnector/internal/repository"
	"kidnector/internal/validation"
)

// FamilyService handles the family, its children and its settings
type FamilyService struct {
	client     *backend.Client
	familyRepo *repository.FamilyRepository
	childRepo  *repository.ChildRepository
	customRepo *repository.CustomAffirmationRepository
	pushRepo   *repository.PushTokenRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewFamilyService creates a new family service
func NewFamilyService(client *backend.Client, familyRepo *repository.FamilyRepository, childRepo *repository.ChildRepository, customRepo *repository.CustomAffirmationRepository, pushRepo *repository.PushTokenRepository, logger *zap.Logger) *FamilyService {
	return &FamilyService{
		client:     client,
		familyRepo: familyRepo,
		childRepo:  childRepo,
		customRepo: customRepo,
		pushRepo:   pushRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// familyID returns the signed-in parent's family; it shares the auth user ID
func familyID(client *backend.Client) (string, error) {
	id, err := client.Auth().UserID()
	if errors.Is(err, backend.ErrNotAuthenticated) {
		return "", ErrNotAuthenticated
	}
	return id, err
}

// GetFamily retrieves the signed-in parent's family
func (s *FamilyService) GetFamily(ctx context.Context) (*models.Family, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, err
	}

	family, err := s.familyRepo.GetFamily(ctx, id)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// GetChildren lists the family's children, oldest profile first. Signed out,
// there are no children.
func (s *FamilyService) GetChildren(ctx context.Context) ([]models.Child, error) {
	id, err := familyID(s.client)
	if errors.Is(err, ErrNotAuthenticated) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.childRepo.GetFamilyChildren(ctx, id)
}

// AddChildInput is the add-child form
type AddChildInput struct {
	Name string
	// Age is the text typed by the parent
	Age                    string
	DailyScreenTimeMinutes int
	Avatar                 string
}

// AddChild validates the form and creates the child profile
func (s *FamilyService) AddChild(ctx context.Context, in AddChildInput) (*models.Child, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	minutes := in.DailyScreenTimeMinutes
	if minutes == 0 {
		minutes = models.DefaultScreenTimeMinutes
	}
	pick := in.Avatar
	if pick == "" {
		pick = avatar.Default()
	}
	var avatarErr error
	if !avatar.Valid(pick) {
		avatarErr = validation.ValidationError{Field: "avatar", Message: "Please choose an avatar"}
	}

	if err := validate(
		validation.ValidateChildName(name),
		validation.ValidateChildAge(in.Age),
		validation.ValidateScreenTime(minutes),
		avatarErr,
	); err != nil {
		return nil, err
	}
	age, _ := validation.ParseChildAge(in.Age)

	child, err := s.childRepo.CreateChild(ctx, models.NewChild{
		FamilyID:               id,
		Name:                   name,
		Age:                    age,
		Avatar:                 pick,
		DailyScreenTimeMinutes: minutes,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("child added", zap.String("child_id", child.ID))
	return child, nil
}

// UpdateChild changes a child's profile after validating the changed fields
func (s *FamilyService) UpdateChild(ctx context.Context, childID string, update models.ChildUpdate) (*models.Child, error) {
	if _, err := s.ownedChild(ctx, childID); err != nil {
		return nil, err
	}

	var errs []error
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
		errs = append(errs, validation.ValidateChildName(trimmed))
	}
	if update.Age != nil && (*update.Age < validation.MinChildAge || *update.Age > validation.MaxChildAge) {
		errs = append(errs, validation.ValidationError{Field: "age", Message: "Age must be between 3 and 18"})
	}
	if update.DailyScreenTimeMinutes != nil {
		errs = append(errs, validation.ValidateScreenTime(*update.DailyScreenTimeMinutes))
	}
	if update.Avatar != nil && !avatar.Valid(*update.Avatar) {
		errs = append(errs, validation.ValidationError{Field: "avatar", Message: "Please choose an avatar"})
	}
	if err := validate(errs...); err != nil {
		return nil, err
	}

	child, err := s.childRepo.UpdateChild(ctx, childID, update)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, ErrChildNotFound
	}
	return child, nil
}

// ownedChild loads a child and checks it belongs to the signed-in family
func (s *FamilyService) ownedChild(ctx context.Context, childID string) (*models.Child, error) {
	return loadOwnedChild(ctx, s.client, s.childRepo, childID)
}

func loadOwnedChild(ctx context.Context, client *backend.Client, repo *repository.ChildRepository, childID string) (*models.Child, error) {
	id, err := familyID(client)
	if err != nil {
		return nil, err
	}
	child, err := repo.GetChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil || child.FamilyID != id {
		return nil, ErrChildNotFound
	}
	return child, nil
}

// CompleteOnboarding marks first-run setup as done
func (s *FamilyService) CompleteOnboarding(ctx context.Context) error {
	id, err := familyID(s.client)
	if err != nil {
		return err
	}
	return s.familyRepo.CompleteOnboarding(ctx, id)
}

// UpdateTimezone changes the family's timezone. An empty name means the
// local zone.
func (s *FamilyService) UpdateTimezone(ctx context.Context, timezone string) (string, error) {
	id, err := familyID(s.client)
	if err != nil {
		return "", err
	}
	tz, err := resolveTimezone(timezone)
	if err != nil {
		return "", err
	}
	if err := s.familyRepo.UpdateTimezone(ctx, id, tz); err != nil {
		return "", err
	}
	return tz, nil
}

// GetTrialInfo reports how much of the free trial is left
func (s *FamilyService) GetTrialInfo(ctx context.Context) (models.TrialInfo, error) {
	sub, err := s.subscription(ctx)
	if err != nil {
		return models.TrialInfo{}, err
	}
	return sub.TrialInfo(s.now()), nil
}

// CheckSubscriptionAccess reports whether the family may use the app now
func (s *FamilyService) CheckSubscriptionAccess(ctx context.Context) (bool, error) {
	sub, err := s.subscription(ctx)
	if err != nil {
		return false, err
	}
	return sub.HasAccess(s.now()), nil
}

func (s *FamilyService) subscription(ctx context.Context) (*models.Subscription, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, err
	}
	sub, err := s.familyRepo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrFamilyNotFound
	}
	return sub, nil
}

// AddCustomAffirmation stores a family-written affirmation. With a childID
// it is meant for that child only.
func (s *FamilyService) AddCustomAffirmation(ctx context.Context, text, childID string) (*models.CustomAffirmation, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if err := validation.ValidateAffirmationText(text); err != nil {
		return nil, err
	}

	in := models.NewCustomAffirmation{FamilyID: id, Text: text}
	if childID != "" {
		if _, err := s.ownedChild(ctx, childID); err != nil {
			return nil, err
		}
		in.ChildID = &childID
	}

	return s.customRepo.Create(ctx, in)
}

// ListCustomAffirmations returns the family's active custom affirmations
func (s *FamilyService) ListCustomAffirmations(ctx context.Context) ([]models.CustomAffirmation, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, err
	}
	return s.customRepo.ListForFamily(ctx, id)
}

// RegisterPushToken records this device for notifications
func (s *FamilyService) RegisterPushToken(ctx context.Context, token, deviceType, childID string) error {
	id, err := familyID(s.client)
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return validation.ValidationError{Field: "token", Message: "Push token is required"}
	}

	in := models.NewPushToken{FamilyID: id, ExpoPushToken: token}
	if deviceType != "" {
		in.DeviceType = &deviceType
	}
	if childID != "" {
		if _, err := s.ownedChild(ctx, childID); err != nil {
			return err
		}
		in.ChildID = &childID
	}

	if err := s.pushRepo.Register(ctx, in); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// UnregisterPushToken stops notifications to a device
func (s *FamilyService) UnregisterPushToken(ctx context.Context, token string) error {
	if _, err := familyID(s.client); err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return validation.ValidationError{Field: "token", Message: "Push token is required"}
	}
	return s.pushRepo.Deactivate(ctx, token)
}
