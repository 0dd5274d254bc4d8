package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/identifier"
)

// RefreshToken is the persisted record backing a refresh JWT. The stored row
// is the source of truth for revocation: a structurally valid, unexpired
// token must still be rejected once its row is marked revoked.
type RefreshToken struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Token     string    `gorm:"column:token;size:512;uniqueIndex;not null"`
	UserID    string    `gorm:"column:user_id;size:36;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	Revoked   bool      `gorm:"column:revoked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

var (
	errStoreMissingDatabase   = errors.New("auth: database handle is required")
	errStoreMissingIDProvider = errors.New("auth: id provider is required")
)

// RefreshTokenStoreConfig configures the refresh token store.
type RefreshTokenStoreConfig struct {
	Database   *gorm.DB
	IDProvider identifier.Provider
	Clock      func() time.Time
}

// RefreshTokenStore persists refresh tokens and their revocation state.
type RefreshTokenStore struct {
	db    *gorm.DB
	ids   identifier.Provider
	clock func() time.Time
}

// NewRefreshTokenStore constructs a RefreshTokenStore.
func NewRefreshTokenStore(cfg RefreshTokenStoreConfig) (*RefreshTokenStore, error) {
	if cfg.Database == nil {
		return nil, errStoreMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errStoreMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &RefreshTokenStore{db: cfg.Database, ids: cfg.IDProvider, clock: clock}, nil
}

// Persist records a freshly issued refresh token as non-revoked.
func (s *RefreshTokenStore) Persist(ctx context.Context, token, userID string, expiresAt time.Time) (RefreshToken, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return RefreshToken{}, fmt.Errorf("auth: id generation failed: %w", err)
	}
	record := RefreshToken{
		ID:        id,
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return RefreshToken{}, fmt.Errorf("auth: persist refresh token: %w", err)
	}
	return record, nil
}

// IsValid reports whether a matching record exists, is not revoked, and has
// not passed its stored expiry. This check is independent of the token's own
// signature and embedded expiry; both must pass for a refresh to succeed.
func (s *RefreshTokenStore) IsValid(ctx context.Context, token string) (bool, error) {
	var record RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: lookup refresh token: %w", err)
	}
	if record.Revoked {
		return false, nil
	}
	return record.ExpiresAt.After(s.clock().UTC()), nil
}

// Revoke marks the matching record revoked. Revoking an unknown or already
// revoked token is a no-op; the boolean reports whether a live row was found.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("token = ? AND revoked = ?", token, false).
		Update("revoked", true)
	if result.Error != nil {
		return false, fmt.Errorf("auth: revoke refresh token: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RevokeAllForUser bulk-revokes every live refresh token owned by the user.
// Used on password change and explicit log-out-everywhere.
func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, fmt.Errorf("auth: revoke user refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeExpired deletes rows whose expiry has passed. Validation already
// checks expiry, so this is storage hygiene rather than a correctness step.
func (s *RefreshTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.clock().UTC()).
		Delete(&RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("auth: purge expired refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
