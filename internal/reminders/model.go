package reminders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/users"
)

// Status tracks a reminder through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// ErrInvalidStatus indicates a status outside pending/sent/cancelled.
var ErrInvalidStatus = errors.New("reminders: invalid status")

// ParseStatus validates raw input and returns a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusSent:
		return StatusSent, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Reminder schedules a future prompt for one of the user's notes. Dispatch is
// handled by an external queue; this service only manages the records.
type Reminder struct {
	ID          string     `gorm:"column:id;primaryKey;size:36;not null"`
	UserID      string     `gorm:"column:user_id;size:36;not null;index"`
	NoteID      string     `gorm:"column:note_id;size:36;not null;index"`
	ScheduledAt time.Time  `gorm:"column:scheduled_at;not null"`
	Status      Status     `gorm:"column:status;size:16;not null;default:pending"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	User        users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Note        notes.Note `gorm:"foreignKey:NoteID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Reminder) TableName() string {
	return "reminders"
}
