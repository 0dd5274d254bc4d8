package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/auth"
	"github.com/scribelab/scribes/internal/identifier"
)

const minPasswordLength = 8

var (
	// ErrUserNotFound indicates no account matches the lookup.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrInvalidCredentials indicates the username/password pair did not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrAccountDisabled indicates the account's active flag is off.
	ErrAccountDisabled = errors.New("users: account disabled")
	// ErrEmailRequired indicates a registration without an email.
	ErrEmailRequired = errors.New("users: email is required")
	// ErrUsernameRequired indicates a registration without a username.
	ErrUsernameRequired = errors.New("users: username is required")
	// ErrPasswordTooShort indicates a password below the minimum length.
	ErrPasswordTooShort = fmt.Errorf("users: password must be at least %d characters", minPasswordLength)

	errMissingDatabase   = errors.New("users: database handle is required")
	errMissingIDProvider = errors.New("users: id provider is required")
	errMissingHasher     = errors.New("users: password hasher is required")
)

// TokenRevoker invalidates every live refresh token a user holds. Satisfied
// by auth.RefreshTokenStore.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider identifier.Provider
	Hasher     *auth.PasswordHasher
	Revoker    TokenRevoker
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages account registration, authentication, and profile changes.
type Service struct {
	db      *gorm.DB
	ids     identifier.Provider
	hasher  *auth.PasswordHasher
	revoker TokenRevoker
	clock   func() time.Time
	logger  *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Hasher == nil {
		return nil, errMissingHasher
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      cfg.Database,
		ids:     cfg.IDProvider,
		hasher:  cfg.Hasher,
		revoker: cfg.Revoker,
		clock:   clock,
		logger:  logger,
	}, nil
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName string
}

// Register creates a new active account after uniqueness checks.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := normalizeEmail(input.Email)
	username := normalize(input.Username)
	if email == "" {
		return User{}, ErrEmailRequired
	}
	if username == "" {
		return User{}, ErrUsernameRequired
	}
	if len(input.Password) < minPasswordLength {
		return User{}, ErrPasswordTooShort
	}

	if taken, err := s.exists(ctx, "email", email); err != nil {
		return User{}, err
	} else if taken {
		return User{}, ErrEmailTaken
	}
	if taken, err := s.exists(ctx, "username", username); err != nil {
		return User{}, err
	} else if taken {
		return User{}, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return User{}, fmt.Errorf("users: id generation failed: %w", err)
	}

	user := User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     normalize(input.FullName),
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("users: create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate verifies a username/password pair and returns the account.
// Disabled accounts fail even with correct credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", normalize(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup user: %w", err)
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, ErrAccountDisabled
	}
	return user, nil
}

// GetByID returns the account for the given id.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup user: %w", err)
	}
	return user, nil
}

// ProfilePatch carries optional profile fields; nil fields are untouched.
type ProfilePatch struct {
	Email    *string
	FullName *string
}

// UpdateProfile applies the provided fields to the account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}

	updates := map[string]interface{}{}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return User{}, ErrEmailRequired
		}
		if email != user.Email {
			if taken, err := s.exists(ctx, "email", email); err != nil {
				return User{}, err
			} else if taken {
				return User{}, ErrEmailTaken
			}
			updates["email"] = email
		}
	}
	if patch.FullName != nil {
		updates["full_name"] = normalize(*patch.FullName)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return User{}, fmt.Errorf("users: update profile: %w", err)
	}
	return s.GetByID(ctx, userID)
}

// ChangePassword verifies the current password, stores a new hash, and
// revokes every live refresh token the user holds.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("users: update password: %w", err)
	}

	if s.revoker != nil {
		revoked, err := s.revoker.RevokeAllForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("users: revoke refresh tokens: %w", err)
		}
		s.logger.Info("password changed",
			zap.String("user_id", userID),
			zap.Int64("tokens_revoked", revoked))
	}
	return nil
}

// Deactivate soft-disables the account. Existing refresh tokens are revoked
// so the account cannot mint new access tokens.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("users: deactivate user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	if s.revoker != nil {
		if _, err := s.revoker.RevokeAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("users: revoke refresh tokens: %w", err)
		}
	}
	return nil
}

// Exists reports whether an account with the given id is present.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, "id", userID)
}

func (s *Service) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).Where(column+" = ?", value).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("users: existence check: %w", err)
	}
	return count > 0, nil
}
