package circles

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/users"
)

// Role is the administrative axis of a circle membership.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Status is the lifecycle axis of a circle membership, orthogonal to Role.
type Status string

const (
	StatusInvited  Status = "invited"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var (
	// ErrInvalidRole indicates a role outside owner/admin/member.
	ErrInvalidRole = errors.New("circles: invalid member role")
	// ErrInvalidStatus indicates a status outside invited/active/inactive.
	ErrInvalidStatus = errors.New("circles: invalid member status")
)

// ParseRole validates raw input and returns a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// ParseStatus validates raw input and returns a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusInvited:
		return StatusInvited, nil
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Circle is a named group owning memberships and shared-note links. A circle
// always has exactly one owner; the owner's membership row is created in the
// same transaction as the circle itself.
type Circle struct {
	ID          string     `gorm:"column:id;primaryKey;size:36;not null"`
	Name        string     `gorm:"column:name;size:100;not null"`
	Description string     `gorm:"column:description;type:text"`
	OwnerID     string     `gorm:"column:owner_id;size:36;not null;index"`
	IsPrivate   bool       `gorm:"column:is_private;not null;default:false"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	Owner       users.User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Circle) TableName() string {
	return "circles"
}

// CircleMember pairs a circle with a user. The (circle_id, user_id) unique
// index is the backstop against duplicate-insert races.
type CircleMember struct {
	ID        string      `gorm:"column:id;primaryKey;size:36;not null"`
	CircleID  string      `gorm:"column:circle_id;size:36;not null;uniqueIndex:idx_circle_member,priority:1"`
	UserID    string      `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_circle_member,priority:2"`
	Role      Role        `gorm:"column:role;size:16;not null;default:member"`
	Status    Status      `gorm:"column:status;size:16;not null;default:active"`
	JoinedAt  time.Time   `gorm:"column:joined_at;not null"`
	InvitedBy *string     `gorm:"column:invited_by;size:36"`
	Circle    Circle      `gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE"`
	User      users.User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Inviter   *users.User `gorm:"foreignKey:InvitedBy;constraint:OnDelete:SET NULL"`
}

// TableName provides the explicit table binding for GORM.
func (CircleMember) TableName() string {
	return "circle_members"
}

// CircleNote links a note into a circle. The (circle_id, note_id) unique
// index keeps sharing idempotent under concurrent requests.
type CircleNote struct {
	ID       string     `gorm:"column:id;primaryKey;size:36;not null"`
	CircleID string     `gorm:"column:circle_id;size:36;not null;uniqueIndex:idx_circle_note,priority:1"`
	NoteID   string     `gorm:"column:note_id;size:36;not null;uniqueIndex:idx_circle_note,priority:2"`
	SharedAt time.Time  `gorm:"column:shared_at;not null"`
	Circle   Circle     `gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE"`
	Note     notes.Note `gorm:"foreignKey:NoteID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (CircleNote) TableName() string {
	return "circle_notes"
}
