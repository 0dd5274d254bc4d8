package circles

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/users"
)

// isAuthority reports whether the user may perform administrative mutations
// on the circle: the circle's owner, or an active member with an owner or
// admin role.
func (s *Service) isAuthority(ctx context.Context, circle Circle, userID string) (bool, error) {
	if circle.OwnerID == userID {
		return true, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&CircleMember{}).
		Where("circle_id = ? AND user_id = ? AND status = ? AND role IN ?",
			circle.ID, userID, StatusActive, []Role{RoleOwner, RoleAdmin}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("circles: authority check: %w", err)
	}
	return count > 0, nil
}

// isActiveMember reports whether the user holds a status=active membership row.
func (s *Service) isActiveMember(ctx context.Context, circleID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CircleMember{}).
		Where("circle_id = ? AND user_id = ? AND status = ?", circleID, userID, StatusActive).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("circles: membership check: %w", err)
	}
	return count > 0, nil
}

func (s *Service) requireAuthority(ctx context.Context, circle Circle, userID string) error {
	ok, err := s.isAuthority(ctx, circle, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied
	}
	return nil
}

// requireReadAccess enforces the read rule: public circles are readable by
// anyone; private circles only by the owner or an active member.
func (s *Service) requireReadAccess(ctx context.Context, circle Circle, userID string) error {
	if !circle.IsPrivate || circle.OwnerID == userID {
		return nil
	}
	active, err := s.isActiveMember(ctx, circle.ID, userID)
	if err != nil {
		return err
	}
	if !active {
		return ErrAccessDenied
	}
	return nil
}

// MemberInput carries the fields for a direct member add.
type MemberInput struct {
	UserID string
	Role   Role
	Status Status
}

// AddMember adds a user to the circle with the given role and status.
// Requires authority. A user who already has a membership row gets that row's
// role and status updated instead of a duplicate (upsert semantics); a
// uniqueness violation on insert is treated the same way.
func (s *Service) AddMember(ctx context.Context, circleID, requesterID string, input MemberInput) (MemberRecord, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return MemberRecord{}, err
	}
	if err := s.requireAuthority(ctx, circle, requesterID); err != nil {
		return MemberRecord{}, err
	}
	user, err := s.userByID(ctx, input.UserID)
	if err != nil {
		return MemberRecord{}, err
	}

	role := input.Role
	if role == "" {
		role = RoleMember
	}
	status := input.Status
	if status == "" {
		status = StatusActive
	}

	existing, err := s.memberRow(ctx, circleID, input.UserID)
	if err == nil {
		return s.updateMemberRow(ctx, existing, user, map[string]interface{}{
			"role":   role,
			"status": status,
		})
	}
	if !errors.Is(err, ErrMemberNotFound) {
		return MemberRecord{}, err
	}

	row, err := s.insertMemberRow(ctx, circleID, input.UserID, role, status, &requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost an insert race; the unique index guarantees the row exists now.
			existing, lookupErr := s.memberRow(ctx, circleID, input.UserID)
			if lookupErr != nil {
				return MemberRecord{}, lookupErr
			}
			return s.updateMemberRow(ctx, existing, user, map[string]interface{}{
				"role":   role,
				"status": status,
			})
		}
		return MemberRecord{}, err
	}

	s.logger.Info("member added",
		zap.String("circle_id", circleID),
		zap.String("user_id", input.UserID),
		zap.String("role", string(role)))
	return memberRecord(row, user), nil
}

// InviteInput carries the fields for an invitation.
type InviteInput struct {
	UserID string
	Role   Role
}

// InviteMember creates a status=invited membership row. Requires authority.
// Inviting an already-active member returns the existing row unchanged;
// inviting an inactive or previously invited user resets the row to invited
// with the new inviter.
func (s *Service) InviteMember(ctx context.Context, circleID, requesterID string, input InviteInput) (MemberRecord, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return MemberRecord{}, err
	}
	if err := s.requireAuthority(ctx, circle, requesterID); err != nil {
		return MemberRecord{}, err
	}
	user, err := s.userByID(ctx, input.UserID)
	if err != nil {
		return MemberRecord{}, err
	}

	role := input.Role
	if role == "" {
		role = RoleMember
	}

	existing, err := s.memberRow(ctx, circleID, input.UserID)
	if err == nil {
		if existing.Status == StatusActive {
			return memberRecord(existing, user), nil
		}
		return s.updateMemberRow(ctx, existing, user, map[string]interface{}{
			"status":     StatusInvited,
			"invited_by": requesterID,
		})
	}
	if !errors.Is(err, ErrMemberNotFound) {
		return MemberRecord{}, err
	}

	row, err := s.insertMemberRow(ctx, circleID, input.UserID, role, StatusInvited, &requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, lookupErr := s.memberRow(ctx, circleID, input.UserID)
			if lookupErr != nil {
				return MemberRecord{}, lookupErr
			}
			if existing.Status == StatusActive {
				return memberRecord(existing, user), nil
			}
			return s.updateMemberRow(ctx, existing, user, map[string]interface{}{
				"status":     StatusInvited,
				"invited_by": requesterID,
			})
		}
		return MemberRecord{}, err
	}

	s.logger.Info("member invited",
		zap.String("circle_id", circleID),
		zap.String("user_id", input.UserID),
		zap.String("inviter_id", requesterID))
	return memberRecord(row, user), nil
}

// MemberPatch carries optional membership fields; nil fields are untouched.
type MemberPatch struct {
	Role   *Role
	Status *Status
}

// UpdateMember changes a member's role or status. Requires authority. The
// owner role is immutable once assigned: changing a row whose current role is
// owner fails for any requester.
func (s *Service) UpdateMember(ctx context.Context, circleID, memberUserID, requesterID string, patch MemberPatch) (MemberRecord, error) {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return MemberRecord{}, err
	}
	member, err := s.memberRow(ctx, circleID, memberUserID)
	if err != nil {
		return MemberRecord{}, err
	}
	if err := s.requireAuthority(ctx, circle, requesterID); err != nil {
		return MemberRecord{}, err
	}
	if member.Role == RoleOwner && patch.Role != nil && *patch.Role != RoleOwner {
		return MemberRecord{}, ErrOwnerRoleImmutable
	}

	user, err := s.userByID(ctx, memberUserID)
	if err != nil {
		return MemberRecord{}, err
	}

	updates := map[string]interface{}{}
	if patch.Role != nil {
		updates["role"] = *patch.Role
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if len(updates) == 0 {
		return memberRecord(member, user), nil
	}
	return s.updateMemberRow(ctx, member, user, updates)
}

// RemoveMember hard-deletes a membership row. Authorities may remove any
// member; any member may remove themselves regardless of role, except the
// owner, who may never leave while holding the owner role.
func (s *Service) RemoveMember(ctx context.Context, circleID, memberUserID, requesterID string) error {
	circle, err := s.circleByID(ctx, circleID)
	if err != nil {
		return err
	}
	member, err := s.memberRow(ctx, circleID, memberUserID)
	if err != nil {
		return err
	}

	selfRemoval := memberUserID == requesterID
	if !selfRemoval {
		if err := s.requireAuthority(ctx, circle, requesterID); err != nil {
			return err
		}
	}
	if member.Role == RoleOwner {
		if selfRemoval {
			return ErrOwnerCannotLeave
		}
		return ErrAccessDenied
	}

	if err := s.db.WithContext(ctx).Where("id = ?", member.ID).Delete(&CircleMember{}).Error; err != nil {
		return fmt.Errorf("circles: remove member: %w", err)
	}

	s.logger.Info("member removed",
		zap.String("circle_id", circleID),
		zap.String("user_id", memberUserID),
		zap.Bool("self_removal", selfRemoval))
	return nil
}

func (s *Service) memberRow(ctx context.Context, circleID, userID string) (CircleMember, error) {
	var member CircleMember
	err := s.db.WithContext(ctx).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CircleMember{}, ErrMemberNotFound
	}
	if err != nil {
		return CircleMember{}, fmt.Errorf("circles: lookup member: %w", err)
	}
	return member, nil
}

func (s *Service) insertMemberRow(ctx context.Context, circleID, userID string, role Role, status Status, invitedBy *string) (CircleMember, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return CircleMember{}, fmt.Errorf("circles: id generation failed: %w", err)
	}
	row := CircleMember{
		ID:        id,
		CircleID:  circleID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		JoinedAt:  s.clock().UTC(),
		InvitedBy: invitedBy,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return CircleMember{}, err
	}
	return row, nil
}

func (s *Service) updateMemberRow(ctx context.Context, member CircleMember, user users.User, updates map[string]interface{}) (MemberRecord, error) {
	err := s.db.WithContext(ctx).Model(&CircleMember{}).Where("id = ?", member.ID).Updates(updates).Error
	if err != nil {
		return MemberRecord{}, fmt.Errorf("circles: update member: %w", err)
	}
	refreshed, err := s.memberRow(ctx, member.CircleID, member.UserID)
	if err != nil {
		return MemberRecord{}, err
	}
	return memberRecord(refreshed, user), nil
}

func (s *Service) userByID(ctx context.Context, userID string) (users.User, error) {
	var user users.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, users.ErrUserNotFound
	}
	if err != nil {
		return users.User{}, fmt.Errorf("circles: lookup user: %w", err)
	}
	return user, nil
}
