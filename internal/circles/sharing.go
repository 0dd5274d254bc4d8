package circles

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/notes"
)

// ShareNote links a note into a circle. The requester must own the note and
// either own the circle or hold an active membership row in it; role does
// not matter here. Re-sharing an already-shared note returns the existing
// link's note without error.
func (s *Service) ShareNote(ctx context.Context, circleID, noteID, requesterID string) (notes.Record, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return notes.Record{}, err
	}
	note, err := s.noteByID(ctx, noteID)
	if err != nil {
		return notes.Record{}, err
	}
	if note.UserID != requesterID {
		return notes.Record{}, ErrAccessDenied
	}
	if circle.OwnerID != requesterID {
		active, err := s.isActiveMember(ctx, circleID, requesterID)
		if err != nil {
			return notes.Record{}, err
		}
		if !active {
			return notes.Record{}, ErrAccessDenied
		}
	}

	exists, err := s.linkExists(ctx, circleID, noteID)
	if err != nil {
		return notes.Record{}, err
	}
	if exists {
		return notes.RecordFromNote(note), nil
	}

	id, err := s.ids.NewID()
	if err != nil {
		return notes.Record{}, fmt.Errorf("circles: id generation failed: %w", err)
	}
	link := CircleNote{
		ID:       id,
		CircleID: circleID,
		NoteID:   noteID,
		SharedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		// A concurrent share may have won; the unique index makes that a success.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return notes.RecordFromNote(note), nil
		}
		return notes.Record{}, fmt.Errorf("circles: share note: %w", err)
	}

	s.logger.Info("note shared",
		zap.String("circle_id", circleID),
		zap.String("note_id", noteID),
		zap.String("user_id", requesterID))
	return notes.RecordFromNote(note), nil
}

// UnshareNote removes a note's link into a circle. The requester must be the
// note owner or a circle authority. Fails with ErrNotShared when no link
// exists.
func (s *Service) UnshareNote(ctx context.Context, circleID, noteID, requesterID string) error {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return err
	}
	note, err := s.noteByID(ctx, noteID)
	if err != nil {
		return err
	}
	if note.UserID != requesterID {
		authority, err := s.isAuthority(ctx, circle, requesterID)
		if err != nil {
			return err
		}
		if !authority {
			return ErrAccessDenied
		}
	}

	result := s.db.WithContext(ctx).
		Where("circle_id = ? AND note_id = ?", circleID, noteID).
		Delete(&CircleNote{})
	if result.Error != nil {
		return fmt.Errorf("circles: unshare note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotShared
	}

	s.logger.Info("note unshared",
		zap.String("circle_id", circleID),
		zap.String("note_id", noteID),
		zap.String("user_id", requesterID))
	return nil
}

// ListSharedNotes returns the notes shared into a circle with a total count.
// Uses the same read-access rule as Get.
func (s *Service) ListSharedNotes(ctx context.Context, circleID, requesterID string, skip, limit int) ([]notes.Record, int64, error) {
	if skip < 0 || limit <= 0 || limit > maxListLimit {
		return nil, 0, ErrInvalidPagination
	}
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.requireReadAccess(ctx, circle, requesterID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&CircleNote{}).Where("circle_id = ?", circleID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("circles: count shared notes: %w", err)
	}

	var stored []notes.Note
	err = s.db.WithContext(ctx).Model(&notes.Note{}).
		Joins("JOIN circle_notes ON circle_notes.note_id = notes.id").
		Where("circle_notes.circle_id = ?", circleID).
		Order("circle_notes.shared_at ASC").
		Offset(skip).
		Limit(limit).
		Find(&stored).Error
	if err != nil {
		return nil, 0, fmt.Errorf("circles: list shared notes: %w", err)
	}

	records := make([]notes.Record, 0, len(stored))
	for _, note := range stored {
		records = append(records, notes.RecordFromNote(note))
	}
	return records, total, nil
}

func (s *Service) linkExists(ctx context.Context, circleID, noteID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CircleNote{}).
		Where("circle_id = ? AND note_id = ?", circleID, noteID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("circles: link check: %w", err)
	}
	return count > 0, nil
}

func (s *Service) noteByID(ctx context.Context, noteID string) (notes.Note, error) {
	var note notes.Note
	err := s.db.WithContext(ctx).Where("id = ?", noteID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notes.Note{}, notes.ErrNoteNotFound
	}
	if err != nil {
		return notes.Note{}, fmt.Errorf("circles: lookup note: %w", err)
	}
	return note, nil
}
