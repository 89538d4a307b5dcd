package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kidnector/internal/backend"
	"kidnector/internal/models"
	"kidnector/internal/repository"
	"kidnector/internal/validation"
)

// CompletionService handles the daily affirmation flow: what a child sees
// today, submitting a recording and the parent's review
type CompletionService struct {
	client          *backend.Client
	childRepo       *repository.ChildRepository
	familyRepo      *repository.FamilyRepository
	affirmationRepo *repository.AffirmationRepository
	completionRepo  *repository.CompletionRepository
	email           *EmailService
	bucket          string
	logger          *zap.Logger
	now             func() time.Time
}

// NewCompletionService creates a new completion service; recordings are
// uploaded to bucket
func NewCompletionService(client *backend.Client, childRepo *repository.ChildRepository, familyRepo *repository.FamilyRepository, affirmationRepo *repository.AffirmationRepository, completionRepo *repository.CompletionRepository, email *EmailService, bucket string, logger *zap.Logger) *CompletionService {
	return &CompletionService{
		client:          client,
		childRepo:       childRepo,
		familyRepo:      familyRepo,
		affirmationRepo: affirmationRepo,
		completionRepo:  completionRepo,
		email:           email,
		bucket:          bucket,
		logger:          logger,
		now:             time.Now,
	}
}

// today returns the current completion date
func (s *CompletionService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GetChildHome gathers today's affirmation and submission state for a child
func (s *CompletionService) GetChildHome(ctx context.Context, childID string) (*models.DailyView, error) {
	child, err := loadOwnedChild(ctx, s.client, s.childRepo, childID)
	if err != nil {
		return nil, err
	}

	date := s.today().Format(models.DateLayout)

	var (
		affirmation models.DailyAffirmation
		today       *models.Completion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		affirmation = s.dailyAffirmation(gctx, child)
		return nil
	})
	g.Go(func() error {
		c, err := s.completionRepo.GetTodayCompletion(gctx, child.ID, date)
		if err != nil {
			return err
		}
		today = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := models.NewDailyView(*child, affirmation, today)
	return &view, nil
}

// dailyAffirmation picks today's affirmation: the backend's choice, then the
// newest one for the child's age, then the built-in text. Lookup failures
// only move on to the next source.
func (s *CompletionService) dailyAffirmation(ctx context.Context, child *models.Child) models.DailyAffirmation {
	daily, err := s.affirmationRepo.GetDailyAffirmation(ctx, child.ID)
	if err != nil {
		s.logger.Warn("daily affirmation lookup failed", zap.String("child_id", child.ID), zap.Error(err))
	}
	if daily != nil && daily.Text != "" {
		return *daily
	}

	byAge, err := s.affirmationRepo.GetForAge(ctx, child.Age)
	if err != nil {
		s.logger.Warn("age affirmation lookup failed", zap.Int("age", child.Age), zap.Error(err))
	}
	if byAge != nil {
		return models.DailyAffirmation{ID: byAge.ID, Text: byAge.Text, Category: byAge.Category}
	}

	return models.DailyAffirmation{Text: models.FallbackAffirmationText, Category: "confidence"}
}

// SubmitInput is a child's recorded affirmation
type SubmitInput struct {
	ChildID         string
	Recording       io.Reader
	Type            models.RecordingType
	DurationSeconds int

	// AffirmationID names the catalog affirmation that was read. When it is
	// empty, AffirmationText is stored with the submission instead.
	AffirmationID   string
	AffirmationText string
}

// SubmitRecording uploads today's recording and puts it up for review. A
// redo-requested submission is replaced in place.
func (s *CompletionService) SubmitRecording(ctx context.Context, in SubmitInput) (*models.Completion, error) {
	child, err := loadOwnedChild(ctx, s.client, s.childRepo, in.ChildID)
	if err != nil {
		return nil, err
	}

	var errs []error
	if in.Recording == nil {
		errs = append(errs, validation.ValidationError{Field: "recording", Message: "Please record your affirmation first"})
	}
	if !in.Type.Valid() {
		errs = append(errs, validation.ValidationError{Field: "recording_type", Message: "Recording must be audio or video"})
	}
	if in.DurationSeconds < 0 {
		errs = append(errs, validation.ValidationError{Field: "duration", Message: "Recording length cannot be negative"})
	}
	if err := validate(errs...); err != nil {
		return nil, err
	}

	now := s.now()
	date := s.today().Format(models.DateLayout)

	existing, err := s.completionRepo.GetTodayCompletion(ctx, child.ID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != models.StatusRedoRequested {
		return nil, ErrAlreadySubmitted
	}

	objectPath := fmt.Sprintf("%s/%s/%s.%s", child.FamilyID, child.ID, date, in.Type.Extension())
	recordingURL, err := s.client.Storage(s.bucket).Upload(ctx, objectPath, in.Recording, in.Type.ContentType(), true)
	if err != nil {
		return nil, fmt.Errorf("failed to upload recording: %w", err)
	}

	var completion *models.Completion
	if existing != nil {
		completion, err = s.completionRepo.Resubmit(ctx, existing.ID, recordingURL, in.Type, in.DurationSeconds, now)
		if err != nil {
			return nil, err
		}
		if completion == nil {
			return nil, ErrAlreadySubmitted
		}
	} else {
		row := models.NewCompletion{
			ChildID:                  child.ID,
			FamilyID:                 child.FamilyID,
			RecordingURL:             recordingURL,
			RecordingType:            in.Type,
			RecordingDurationSeconds: in.DurationSeconds,
			CompletionDate:           date,
		}
		if in.AffirmationID != "" {
			row.AffirmationID = &in.AffirmationID
		} else if text := strings.TrimSpace(in.AffirmationText); text != "" {
			row.CustomAffirmationText = &text
		}
		completion, err = s.completionRepo.CreateCompletion(ctx, row)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("recording submitted",
		zap.String("child_id", child.ID),
		zap.String("completion_id", completion.ID),
		zap.String("date", date))

	s.notifyParent(ctx, child)
	return completion, nil
}

func (s *CompletionService) notifyParent(ctx context.Context, child *models.Child) {
	if !s.email.IsEnabled() {
		return
	}
	family, err := s.familyRepo.GetFamily(ctx, child.FamilyID)
	if err != nil || family == nil {
		s.logger.Warn("no family to notify", zap.String("family_id", child.FamilyID), zap.Error(err))
		return
	}
	if err := s.email.SendPendingApprovalEmail(ctx, family.Email, family.ParentName, child.Name); err != nil {
		s.logger.Warn("failed to send approval email", zap.String("family_id", family.ID), zap.Error(err))
	}
}

// GetPendingCompletions lists the submissions waiting for the parent, newest first
func (s *CompletionService) GetPendingCompletions(ctx context.Context) ([]models.PendingCompletion, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, err
	}
	return s.completionRepo.GetPendingCompletions(ctx, id)
}

// ownedPending loads a completion of the signed-in family that is waiting for review
func (s *CompletionService) ownedPending(ctx context.Context, completionID string) (*models.Completion, string, error) {
	id, err := familyID(s.client)
	if err != nil {
		return nil, "", err
	}
	c, err := s.completionRepo.GetCompletion(ctx, completionID)
	if err != nil {
		return nil, "", err
	}
	if c == nil || c.FamilyID != id {
		return nil, "", ErrCompletionNotFound
	}
	if c.Status != models.StatusPending {
		return nil, "", ErrCompletionNotPending
	}
	return c, id, nil
}

// Approve grants the screen time for a pending submission. With minutes of
// zero or less the child's daily allowance is granted.
func (s *CompletionService) Approve(ctx context.Context, completionID string, minutes int) (*models.Completion, error) {
	c, parentID, err := s.ownedPending(ctx, completionID)
	if err != nil {
		return nil, err
	}

	if minutes <= 0 {
		minutes = models.DefaultScreenTimeMinutes
		child, err := s.childRepo.GetChild(ctx, c.ChildID)
		if err != nil {
			return nil, err
		}
		if child != nil && child.DailyScreenTimeMinutes > 0 {
			minutes = child.DailyScreenTimeMinutes
		}
	}

	approved, err := s.completionRepo.Approve(ctx, c.ID, parentID, minutes, s.now())
	if err != nil {
		return nil, err
	}
	if approved == nil {
		return nil, ErrCompletionNotPending
	}

	s.logger.Info("completion approved", zap.String("completion_id", c.ID), zap.Int("minutes", minutes))
	return approved, nil
}

// RequestRedo sends a pending submission back to the child with an optional reason
func (s *CompletionService) RequestRedo(ctx context.Context, completionID, reason string) (*models.Completion, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateRedoReason(reason); err != nil {
		return nil, err
	}

	c, _, err := s.ownedPending(ctx, completionID)
	if err != nil {
		return nil, err
	}

	redo, err := s.completionRepo.RequestRedo(ctx, c.ID, reason)
	if err != nil {
		return nil, err
	}
	if redo == nil {
		return nil, ErrCompletionNotPending
	}

	s.logger.Info("redo requested", zap.String("completion_id", c.ID))
	return redo, nil
}

// GetWeek returns the streak calendar for the seven days ending today
func (s *CompletionService) GetWeek(ctx context.Context, childID string) ([]models.CalendarDay, error) {
	child, err := loadOwnedChild(ctx, s.client, s.childRepo, childID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	from := today.AddDate(0, 0, -6).Format(models.DateLayout)
	dates, err := s.completionRepo.GetCompletedDates(ctx, child.ID, from, today.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	return models.WeekCalendar(today, dates), nil
}

// SeedAffirmations fills an empty catalog with the starter set and returns
// how many rows were added
func (s *CompletionService) SeedAffirmations(ctx context.Context) (int, error) {
	exists, err := s.affirmationRepo.HasAny(ctx)
	if err != nil {
		return 0, err
	}
	if exists {
		s.logger.Info("affirmations already exist, skipping seed")
		return 0, nil
	}

	if err := s.affirmationRepo.SeedCatalog(ctx, seedAffirmations); err != nil {
		return 0, err
	}
	s.logger.Info("seeded affirmations", zap.Int("count", len(seedAffirmations)))
	return len(seedAffirmations), nil
}

// CountAffirmations returns the number of active catalog entries
func (s *CompletionService) CountAffirmations(ctx context.Context) (int, error) {
	return s.affirmationRepo.CountActive(ctx)
}
