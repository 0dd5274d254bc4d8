package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/identifier"
)

const maxListLimit = 1000

var (
	// ErrNoteNotFound indicates the note is absent or owned by another user.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrTitleRequired indicates a note without a title.
	ErrTitleRequired = errors.New("notes: title is required")
	// ErrContentRequired indicates a note without content.
	ErrContentRequired = errors.New("notes: content is required")
	// ErrInvalidPagination indicates out-of-range skip/limit values.
	ErrInvalidPagination = errors.New("notes: invalid pagination parameters")

	errMissingDatabase   = errors.New("notes: database handle is required")
	errMissingIDProvider = errors.New("notes: id provider is required")
)

// ServiceConfig describes the dependencies of the notes service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider identifier.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service implements note CRUD scoped to the owning user.
type Service struct {
	db     *gorm.DB
	ids    identifier.Provider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the notes service.
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

// CreateInput carries the fields for a new note.
type CreateInput struct {
	Title         string
	Content       string
	Preacher      string
	Tags          []string
	ScriptureRefs []string
}

// Create stores a new note owned by the user.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (Record, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Record{}, ErrTitleRequired
	}
	if strings.TrimSpace(input.Content) == "" {
		return Record{}, ErrContentRequired
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Record{}, fmt.Errorf("notes: id generation failed: %w", err)
	}
	note := Note{
		ID:            id,
		UserID:        userID,
		Title:         strings.TrimSpace(input.Title),
		Content:       input.Content,
		Preacher:      strings.TrimSpace(input.Preacher),
		Tags:          joinCSV(input.Tags),
		ScriptureRefs: joinCSV(input.ScriptureRefs),
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return Record{}, fmt.Errorf("notes: create note: %w", err)
	}

	s.logger.Debug("note created", zap.String("user_id", userID), zap.String("note_id", note.ID))
	return RecordFromNote(note), nil
}

// Get returns a note if it belongs to the user.
func (s *Service) Get(ctx context.Context, noteID, userID string) (Record, error) {
	note, err := s.ownedNote(ctx, noteID, userID)
	if err != nil {
		return Record{}, err
	}
	return RecordFromNote(note), nil
}

// List returns the user's notes, newest first, with a total count for
// pagination.
func (s *Service) List(ctx context.Context, userID string, skip, limit int) ([]Record, int64, error) {
	if skip < 0 || limit <= 0 || limit > maxListLimit {
		return nil, 0, ErrInvalidPagination
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Note{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notes: count notes: %w", err)
	}

	var stored []Note
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&stored).Error
	if err != nil {
		return nil, 0, fmt.Errorf("notes: list notes: %w", err)
	}

	records := make([]Record, 0, len(stored))
	for _, note := range stored {
		records = append(records, RecordFromNote(note))
	}
	return records, total, nil
}

// Patch carries optional note fields; nil fields are untouched. Tag and
// scripture slices replace the stored values wholesale when present.
type Patch struct {
	Title         *string
	Content       *string
	Preacher      *string
	Tags          *[]string
	ScriptureRefs *[]string
}

// Update applies the provided fields to a note the user owns.
func (s *Service) Update(ctx context.Context, noteID, userID string, patch Patch) (Record, error) {
	note, err := s.ownedNote(ctx, noteID, userID)
	if err != nil {
		return Record{}, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return Record{}, ErrTitleRequired
		}
		updates["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return Record{}, ErrContentRequired
		}
		updates["content"] = *patch.Content
	}
	if patch.Preacher != nil {
		updates["preacher"] = strings.TrimSpace(*patch.Preacher)
	}
	if patch.Tags != nil {
		updates["tags"] = joinCSV(*patch.Tags)
	}
	if patch.ScriptureRefs != nil {
		updates["scripture_refs"] = joinCSV(*patch.ScriptureRefs)
	}
	if len(updates) == 0 {
		return RecordFromNote(note), nil
	}

	err = s.db.WithContext(ctx).
		Model(&Note{}).
		Where("id = ? AND user_id = ?", noteID, userID).
		Updates(updates).Error
	if err != nil {
		return Record{}, fmt.Errorf("notes: update note: %w", err)
	}

	updated, err := s.ownedNote(ctx, noteID, userID)
	if err != nil {
		return Record{}, err
	}
	return RecordFromNote(updated), nil
}

// Delete removes a note the user owns. Shared-circle links and reminders
// referencing the note are removed by the store's cascade rules.
func (s *Service) Delete(ctx context.Context, noteID, userID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, userID).Delete(&Note{})
	if result.Error != nil {
		return fmt.Errorf("notes: delete note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	s.logger.Debug("note deleted", zap.String("user_id", userID), zap.String("note_id", noteID))
	return nil
}

func (s *Service) ownedNote(ctx context.Context, noteID, userID string) (Note, error) {
	var note Note
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, userID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNoteNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("notes: lookup note: %w", err)
	}
	return note, nil
}
