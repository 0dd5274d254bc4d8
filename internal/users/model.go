package users

import (
	"strings"
	"time"
)

// User is the persisted account record. Accounts are soft-disabled through
// IsActive; the row itself is never deleted by the services.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Email        string    `gorm:"column:email;size:320;uniqueIndex;not null"`
	Username     string    `gorm:"column:username;size:64;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;size:128;not null"`
	FullName     string    `gorm:"column:full_name;size:255"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	IsSuperuser  bool      `gorm:"column:is_superuser;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
