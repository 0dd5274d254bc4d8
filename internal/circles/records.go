package circles

import (
	"time"

	"github.com/scribelab/scribes/internal/users"
)

// CircleRecord is the result shape for circle reads and listings. MemberCount
// counts only rows with status=active; invited and inactive rows stay in
// storage but are excluded.
type CircleRecord struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	IsPrivate   bool
	MemberCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSummary is the subset of account fields exposed alongside memberships.
type UserSummary struct {
	ID       string
	Username string
	Email    string
	FullName string
}

// MemberRecord is the result shape for membership reads.
type MemberRecord struct {
	ID        string
	CircleID  string
	UserID    string
	Role      Role
	Status    Status
	JoinedAt  time.Time
	InvitedBy *string
	User      UserSummary
}

// CircleDetail extends CircleRecord with the owner and the member list.
type CircleDetail struct {
	CircleRecord
	Owner   UserSummary
	Members []MemberRecord
}

func summaryFromUser(user users.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	}
}

func recordFromCircle(circle Circle, memberCount int64) CircleRecord {
	return CircleRecord{
		ID:          circle.ID,
		Name:        circle.Name,
		Description: circle.Description,
		OwnerID:     circle.OwnerID,
		IsPrivate:   circle.IsPrivate,
		MemberCount: memberCount,
		CreatedAt:   circle.CreatedAt,
		UpdatedAt:   circle.UpdatedAt,
	}
}

func memberRecord(member CircleMember, user users.User) MemberRecord {
	return MemberRecord{
		ID:        member.ID,
		CircleID:  member.CircleID,
		UserID:    member.UserID,
		Role:      member.Role,
		Status:    member.Status,
		JoinedAt:  member.JoinedAt,
		InvitedBy: member.InvitedBy,
		User:      summaryFromUser(user),
	}
}
