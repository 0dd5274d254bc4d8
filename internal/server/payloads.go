package server

import (
	"time"

	"github.com/scribelab/scribes/internal/circles"
	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/reminders"
	"github.com/scribelab/scribes/internal/users"
)

type userPayload struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func userToPayload(user users.User) userPayload {
	return userPayload{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type userSummaryPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

func summaryToPayload(summary circles.UserSummary) userSummaryPayload {
	return userSummaryPayload{
		ID:       summary.ID,
		Username: summary.Username,
		Email:    summary.Email,
		FullName: summary.FullName,
	}
}

type tokenPairPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type notePayload struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Preacher      string    `json:"preacher,omitempty"`
	Tags          []string  `json:"tags"`
	ScriptureRefs []string  `json:"scripture_refs"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func noteToPayload(record notes.Record) notePayload {
	tags := record.Tags
	if tags == nil {
		tags = []string{}
	}
	refs := record.ScriptureRefs
	if refs == nil {
		refs = []string{}
	}
	return notePayload{
		ID:            record.ID,
		UserID:        record.UserID,
		Title:         record.Title,
		Content:       record.Content,
		Preacher:      record.Preacher,
		Tags:          tags,
		ScriptureRefs: refs,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func notesToPayload(records []notes.Record) []notePayload {
	payloads := make([]notePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, noteToPayload(record))
	}
	return payloads
}

type circlePayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	IsPrivate   bool      `json:"is_private"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func circleToPayload(record circles.CircleRecord) circlePayload {
	return circlePayload{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		OwnerID:     record.OwnerID,
		IsPrivate:   record.IsPrivate,
		MemberCount: record.MemberCount,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

type memberPayload struct {
	ID        string             `json:"id"`
	CircleID  string             `json:"circle_id"`
	UserID    string             `json:"user_id"`
	Role      string             `json:"role"`
	Status    string             `json:"status"`
	JoinedAt  time.Time          `json:"joined_at"`
	InvitedBy *string            `json:"invited_by,omitempty"`
	User      userSummaryPayload `json:"user"`
}

func memberToPayload(record circles.MemberRecord) memberPayload {
	return memberPayload{
		ID:        record.ID,
		CircleID:  record.CircleID,
		UserID:    record.UserID,
		Role:      string(record.Role),
		Status:    string(record.Status),
		JoinedAt:  record.JoinedAt,
		InvitedBy: record.InvitedBy,
		User:      summaryToPayload(record.User),
	}
}

func membersToPayload(records []circles.MemberRecord) []memberPayload {
	payloads := make([]memberPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, memberToPayload(record))
	}
	return payloads
}

type circleDetailPayload struct {
	circlePayload
	Owner   userSummaryPayload `json:"owner"`
	Members []memberPayload    `json:"members"`
}

func circleDetailToPayload(detail circles.CircleDetail) circleDetailPayload {
	return circleDetailPayload{
		circlePayload: circleToPayload(detail.CircleRecord),
		Owner:         summaryToPayload(detail.Owner),
		Members:       membersToPayload(detail.Members),
	}
}

type reminderPayload struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	NoteID      string    `json:"note_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func reminderToPayload(reminder reminders.Reminder) reminderPayload {
	return reminderPayload{
		ID:          reminder.ID,
		UserID:      reminder.UserID,
		NoteID:      reminder.NoteID,
		ScheduledAt: reminder.ScheduledAt,
		Status:      string(reminder.Status),
		CreatedAt:   reminder.CreatedAt,
		UpdatedAt:   reminder.UpdatedAt,
	}
}

type listEnvelope struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
}
