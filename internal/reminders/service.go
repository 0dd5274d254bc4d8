package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/identifier"
	"github.com/scribelab/scribes/internal/notes"
)

const (
	maxListLimit         = 1000
	maxScheduleAheadDays = 365
)

var (
	// ErrReminderNotFound indicates the reminder is absent or owned by another user.
	ErrReminderNotFound = errors.New("reminders: reminder not found")
	// ErrScheduledInPast indicates a scheduled time at or before now.
	ErrScheduledInPast = errors.New("reminders: cannot schedule in the past")
	// ErrScheduledTooFarAhead indicates a scheduled time beyond the allowed horizon.
	ErrScheduledTooFarAhead = fmt.Errorf("reminders: cannot schedule more than %d days ahead", maxScheduleAheadDays)
	// ErrDuplicateReminder indicates a pending reminder already exists for the
	// same note and time.
	ErrDuplicateReminder = errors.New("reminders: a pending reminder for this note at this time already exists")
	// ErrInvalidPagination indicates out-of-range skip/limit values.
	ErrInvalidPagination = errors.New("reminders: invalid pagination parameters")

	errMissingDatabase   = errors.New("reminders: database handle is required")
	errMissingIDProvider = errors.New("reminders: id provider is required")
)

// ServiceConfig describes the dependencies of the reminder service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider identifier.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages reminder records scoped to the owning user.
type Service struct {
	db     *gorm.DB
	ids    identifier.Provider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the reminder service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider, clock: clock, logger: logger}, nil
}

// Create schedules a reminder for a note the user owns. The time must lie in
// the future but within the scheduling horizon, and a second pending reminder
// for the same note and time is a conflict.
func (s *Service) Create(ctx context.Context, userID, noteID string, scheduledAt time.Time) (Reminder, error) {
	var note notes.Note
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, userID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Reminder{}, notes.ErrNoteNotFound
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("reminders: lookup note: %w", err)
	}

	now := s.clock().UTC()
	scheduledAt = scheduledAt.UTC()
	if !scheduledAt.After(now) {
		return Reminder{}, ErrScheduledInPast
	}
	if scheduledAt.Sub(now) > maxScheduleAheadDays*24*time.Hour {
		return Reminder{}, ErrScheduledTooFarAhead
	}

	var duplicates int64
	err = s.db.WithContext(ctx).Model(&Reminder{}).
		Where("user_id = ? AND note_id = ? AND scheduled_at = ? AND status = ?",
			userID, noteID, scheduledAt, StatusPending).
		Count(&duplicates).Error
	if err != nil {
		return Reminder{}, fmt.Errorf("reminders: duplicate check: %w", err)
	}
	if duplicates > 0 {
		return Reminder{}, ErrDuplicateReminder
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Reminder{}, fmt.Errorf("reminders: id generation failed: %w", err)
	}
	reminder := Reminder{
		ID:          id,
		UserID:      userID,
		NoteID:      noteID,
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&reminder).Error; err != nil {
		return Reminder{}, fmt.Errorf("reminders: create reminder: %w", err)
	}

	s.logger.Debug("reminder created",
		zap.String("user_id", userID),
		zap.String("note_id", noteID),
		zap.Time("scheduled_at", scheduledAt))
	return reminder, nil
}

// Get returns a reminder if it belongs to the user.
func (s *Service) Get(ctx context.Context, reminderID, userID string) (Reminder, error) {
	var reminder Reminder
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", reminderID, userID).Take(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Reminder{}, ErrReminderNotFound
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("reminders: lookup reminder: %w", err)
	}
	return reminder, nil
}

// List returns the user's reminders ordered by schedule, with a total count.
func (s *Service) List(ctx context.Context, userID string, skip, limit int) ([]Reminder, int64, error) {
	if skip < 0 || limit <= 0 || limit > maxListLimit {
		return nil, 0, ErrInvalidPagination
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Reminder{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("reminders: count reminders: %w", err)
	}

	var stored []Reminder
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at ASC").
		Offset(skip).
		Limit(limit).
		Find(&stored).Error
	if err != nil {
		return nil, 0, fmt.Errorf("reminders: list reminders: %w", err)
	}
	return stored, total, nil
}

// Patch carries optional reminder fields; nil fields are untouched.
type Patch struct {
	ScheduledAt *time.Time
	Status      *Status
}

// Update applies the provided fields to a reminder the user owns. A new
// schedule must satisfy the same horizon rules as creation.
func (s *Service) Update(ctx context.Context, reminderID, userID string, patch Patch) (Reminder, error) {
	reminder, err := s.Get(ctx, reminderID, userID)
	if err != nil {
		return Reminder{}, err
	}

	updates := map[string]interface{}{}
	if patch.ScheduledAt != nil {
		now := s.clock().UTC()
		scheduledAt := patch.ScheduledAt.UTC()
		if !scheduledAt.After(now) {
			return Reminder{}, ErrScheduledInPast
		}
		if scheduledAt.Sub(now) > maxScheduleAheadDays*24*time.Hour {
			return Reminder{}, ErrScheduledTooFarAhead
		}
		updates["scheduled_at"] = scheduledAt
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if len(updates) == 0 {
		return reminder, nil
	}

	err = s.db.WithContext(ctx).Model(&Reminder{}).
		Where("id = ? AND user_id = ?", reminderID, userID).
		Updates(updates).Error
	if err != nil {
		return Reminder{}, fmt.Errorf("reminders: update reminder: %w", err)
	}
	return s.Get(ctx, reminderID, userID)
}

// Cancel marks a reminder cancelled without deleting the record.
func (s *Service) Cancel(ctx context.Context, reminderID, userID string) (Reminder, error) {
	status := StatusCancelled
	return s.Update(ctx, reminderID, userID, Patch{Status: &status})
}

// Delete removes a reminder the user owns.
func (s *Service) Delete(ctx context.Context, reminderID, userID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", reminderID, userID).Delete(&Reminder{})
	if result.Error != nil {
		return fmt.Errorf("reminders: delete reminder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}
