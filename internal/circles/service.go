package circles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/identifier"
	"github.com/scribelab/scribes/internal/users"
)

const maxListLimit = 1000

var (
	// ErrCircleNotFound indicates the circle is absent.
	ErrCircleNotFound = errors.New("circles: circle not found")
	// ErrMemberNotFound indicates no membership row for the (circle, user) pair.
	ErrMemberNotFound = errors.New("circles: member not found")
	// ErrAccessDenied indicates the requester lacks authority over the circle
	// or read access to it.
	ErrAccessDenied = errors.New("circles: access denied")
	// ErrOwnerRoleImmutable indicates an attempt to change the owner row's role.
	ErrOwnerRoleImmutable = errors.New("circles: the owner's role cannot be changed")
	// ErrOwnerCannotLeave indicates the owner attempted self-removal.
	ErrOwnerCannotLeave = errors.New("circles: the owner cannot leave the circle")
	// ErrNotShared indicates the note has no link into the circle.
	ErrNotShared = errors.New("circles: note is not shared with this circle")
	// ErrNameRequired indicates a circle without a name.
	ErrNameRequired = errors.New("circles: name is required")
	// ErrInvalidPagination indicates out-of-range skip/limit values.
	ErrInvalidPagination = errors.New("circles: invalid pagination parameters")

	errMissingDatabase   = errors.New("circles: database handle is required")
	errMissingIDProvider = errors.New("circles: id provider is required")
)

// ServiceConfig describes the dependencies of the circle service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider identifier.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns circle lifecycle, membership transitions, and note sharing.
// Every mutating operation takes the authenticated requester id explicitly
// and applies the authority rules before touching storage.
type Service struct {
	db     *gorm.DB
	ids    identifier.Provider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the circle service.
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

// CreateInput carries the fields for a new circle.
type CreateInput struct {
	Name        string
	Description string
	IsPrivate   bool
}

// Create stores a new circle and its owner membership row (role=owner,
// status=active) in a single transaction; a circle must never exist without
// its owner row.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (CircleRecord, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return CircleRecord{}, ErrNameRequired
	}

	circleID, err := s.ids.NewID()
	if err != nil {
		return CircleRecord{}, fmt.Errorf("circles: id generation failed: %w", err)
	}
	memberID, err := s.ids.NewID()
	if err != nil {
		return CircleRecord{}, fmt.Errorf("circles: id generation failed: %w", err)
	}

	now := s.clock().UTC()
	circle := Circle{
		ID:          circleID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     ownerID,
		IsPrivate:   input.IsPrivate,
	}
	ownerRow := CircleMember{
		ID:       memberID,
		CircleID: circleID,
		UserID:   ownerID,
		Role:     RoleOwner,
		Status:   StatusActive,
		JoinedAt: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&circle).Error; err != nil {
			return fmt.Errorf("circles: create circle: %w", err)
		}
		if err := tx.Create(&ownerRow).Error; err != nil {
			return fmt.Errorf("circles: create owner membership: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return CircleRecord{}, txErr
	}

	s.logger.Info("circle created", zap.String("circle_id", circleID), zap.String("owner_id", ownerID))
	return s.record(ctx, circleID)
}

// Get returns a circle if the requester may read it. Private circles are
// readable only by the owner or an active member.
func (s *Service) Get(ctx context.Context, circleID, requesterID string) (CircleRecord, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return CircleRecord{}, err
	}
	if err := s.requireReadAccess(ctx, circle, requesterID); err != nil {
		return CircleRecord{}, err
	}
	return s.record(ctx, circleID)
}

// GetDetail returns a circle with its owner and member list.
func (s *Service) GetDetail(ctx context.Context, circleID, requesterID string) (CircleDetail, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return CircleDetail{}, err
	}
	if err := s.requireReadAccess(ctx, circle, requesterID); err != nil {
		return CircleDetail{}, err
	}

	record, err := s.record(ctx, circleID)
	if err != nil {
		return CircleDetail{}, err
	}

	var owner users.User
	if err := s.db.WithContext(ctx).Where("id = ?", circle.OwnerID).Take(&owner).Error; err != nil {
		return CircleDetail{}, fmt.Errorf("circles: lookup owner: %w", err)
	}

	members, _, err := s.members(ctx, circleID, 0, maxListLimit)
	if err != nil {
		return CircleDetail{}, err
	}

	return CircleDetail{
		CircleRecord: record,
		Owner:        summaryFromUser(owner),
		Members:      members,
	}, nil
}

// Patch carries optional circle fields; nil fields are untouched.
type Patch struct {
	Name        *string
	Description *string
	IsPrivate   *bool
}

// Update applies the provided fields. Requires authority (owner or active
// admin).
func (s *Service) Update(ctx context.Context, circleID, requesterID string, patch Patch) (CircleRecord, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return CircleRecord{}, err
	}
	if err := s.requireAuthority(ctx, circle, requesterID); err != nil {
		return CircleRecord{}, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return CircleRecord{}, ErrNameRequired
		}
		updates["name"] = name
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.IsPrivate != nil {
		updates["is_private"] = *patch.IsPrivate
	}
	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Model(&Circle{}).Where("id = ?", circleID).Updates(updates).Error
		if err != nil {
			return CircleRecord{}, fmt.Errorf("circles: update circle: %w", err)
		}
	}
	return s.record(ctx, circleID)
}

// Delete removes a circle along with its membership rows and shared-note
// links. Only the exact owner may delete; an admin role is insufficient.
func (s *Service) Delete(ctx context.Context, circleID, requesterID string) error {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return err
	}
	if circle.OwnerID != requesterID {
		return ErrAccessDenied
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("circle_id = ?", circleID).Delete(&CircleMember{}).Error; err != nil {
			return fmt.Errorf("circles: delete memberships: %w", err)
		}
		if err := tx.Where("circle_id = ?", circleID).Delete(&CircleNote{}).Error; err != nil {
			return fmt.Errorf("circles: delete shared-note links: %w", err)
		}
		if err := tx.Where("id = ?", circleID).Delete(&Circle{}).Error; err != nil {
			return fmt.Errorf("circles: delete circle: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.logger.Info("circle deleted", zap.String("circle_id", circleID), zap.String("owner_id", requesterID))
	return nil
}

// ListForUser returns circles where the user is the owner or holds any
// membership row regardless of status, de-duplicated, with a total count.
func (s *Service) ListForUser(ctx context.Context, userID string, skip, limit int) ([]CircleRecord, int64, error) {
	if skip < 0 || limit <= 0 || limit > maxListLimit {
		return nil, 0, ErrInvalidPagination
	}

	base := s.db.WithContext(ctx).Model(&Circle{}).
		Joins("LEFT JOIN circle_members ON circle_members.circle_id = circles.id").
		Where("circles.owner_id = ? OR circle_members.user_id = ?", userID, userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Distinct("circles.id").Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("circles: count user circles: %w", err)
	}

	var stored []Circle
	err := base.Session(&gorm.Session{}).
		Distinct("circles.*").
		Offset(skip).
		Limit(limit).
		Find(&stored).Error
	if err != nil {
		return nil, 0, fmt.Errorf("circles: list user circles: %w", err)
	}

	records := make([]CircleRecord, 0, len(stored))
	for _, circle := range stored {
		count, err := s.activeMemberCount(ctx, circle.ID)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, recordFromCircle(circle, count))
	}
	return records, total, nil
}

// ListMembers returns the circle's membership rows with user details. Uses
// the same read-access rule as Get.
func (s *Service) ListMembers(ctx context.Context, circleID, requesterID string, skip, limit int) ([]MemberRecord, int64, error) {
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
	return s.members(ctx, circleID, skip, limit)
}

func (s *Service) members(ctx context.Context, circleID string, skip, limit int) ([]MemberRecord, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&CircleMember{}).Where("circle_id = ?", circleID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("circles: count members: %w", err)
	}

	var rows []CircleMember
	err := s.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		Order("joined_at ASC").
		Offset(skip).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("circles: list members: %w", err)
	}

	records := make([]MemberRecord, 0, len(rows))
	for _, row := range rows {
		var user users.User
		if err := s.db.WithContext(ctx).Where("id = ?", row.UserID).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, 0, fmt.Errorf("circles: lookup member user: %w", err)
		}
		records = append(records, memberRecord(row, user))
	}
	return records, total, nil
}

func (s *Service) record(ctx context.Context, circleID string) (CircleRecord, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return CircleRecord{}, err
	}
	count, err := s.activeMemberCount(ctx, circleID)
	if err != nil {
		return CircleRecord{}, err
	}
	return recordFromCircle(circle, count), nil
}

func (s *Service) circleByID(ctx context.Context, circleID string) (Circle, error) {
	var circle Circle
	err := s.db.WithContext(ctx).Where("id = ?", circleID).Take(&circle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Circle{}, ErrCircleNotFound
	}
	if err != nil {
		return Circle{}, fmt.Errorf("circles: lookup circle: %w", err)
	}
	return circle, nil
}

func (s *Service) activeMemberCount(ctx context.Context, circleID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CircleMember{}).
		Where("circle_id = ? AND status = ?", circleID, StatusActive).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("circles: count active members: %w", err)
	}
	return count, nil
}
