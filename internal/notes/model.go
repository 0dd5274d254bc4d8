package notes

import (
	"strings"
	"time"

	"github.com/scribelab/scribes/internal/users"
)

// Note is a persisted sermon note. Tags and scripture references are stored
// as comma-separated strings and exposed to callers as slices.
type Note struct {
	ID            string     `gorm:"column:id;primaryKey;size:36;not null"`
	UserID        string     `gorm:"column:user_id;size:36;not null;index"`
	Title         string     `gorm:"column:title;size:255;not null"`
	Content       string     `gorm:"column:content;type:text;not null"`
	Preacher      string     `gorm:"column:preacher;size:100"`
	Tags          string     `gorm:"column:tags;size:255"`
	ScriptureRefs string     `gorm:"column:scripture_refs;size:255"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	User          users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// Record is the result shape returned by the notes service, with list fields
// decoded from their stored CSV form.
type Record struct {
	ID            string
	UserID        string
	Title         string
	Content       string
	Preacher      string
	Tags          []string
	ScriptureRefs []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RecordFromNote decodes a stored note into its result shape.
func RecordFromNote(note Note) Record {
	return Record{
		ID:            note.ID,
		UserID:        note.UserID,
		Title:         note.Title,
		Content:       note.Content,
		Preacher:      note.Preacher,
		Tags:          splitCSV(note.Tags),
		ScriptureRefs: splitCSV(note.ScriptureRefs),
		CreatedAt:     note.CreatedAt,
		UpdatedAt:     note.UpdatedAt,
	}
}

// splitCSV turns "a, b ,c" into ["a","b","c"], dropping empty parts.
func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// joinCSV is the storage-side inverse of splitCSV.
func joinCSV(values []string) string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return strings.Join(trimmed, ",")
}
