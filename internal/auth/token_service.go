package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrTokenExpired indicates the token's embedded expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenTypeMismatch indicates the token_type claim disagrees with the expected class.
	ErrTokenTypeMismatch = errors.New("auth: token type mismatch")
	// ErrTokenInvalid covers malformed tokens and signature failures.
	ErrTokenInvalid = errors.New("auth: invalid token")

	errMissingAccessSecret  = errors.New("auth: access signing secret required")
	errMissingRefreshSecret = errors.New("auth: refresh signing secret required")
	errSharedSigningSecret  = errors.New("auth: access and refresh secrets must differ")
	errMissingSubject       = errors.New("auth: subject user id required")
)

// TokenClaims is the payload carried by every Scribes JWT.
type TokenClaims struct {
	Username  string    `json:"username,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenServiceConfig configures the JWT issuer and verifier. Access and
// refresh tokens are signed with distinct secrets so one compromised key
// cannot forge the other class.
type TokenServiceConfig struct {
	AccessSigningSecret  []byte
	RefreshSigningSecret []byte
	Issuer               string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	Clock                func() time.Time
}

// TokenService mints and verifies access and refresh JWTs.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         func() time.Time
}

// NewTokenService constructs a TokenService with sane defaults.
func NewTokenService(cfg TokenServiceConfig) (*TokenService, error) {
	if len(cfg.AccessSigningSecret) == 0 {
		return nil, errMissingAccessSecret
	}
	if len(cfg.RefreshSigningSecret) == 0 {
		return nil, errMissingRefreshSecret
	}
	if string(cfg.AccessSigningSecret) == string(cfg.RefreshSigningSecret) {
		return nil, errSharedSigningSecret
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{
		accessSecret:  append([]byte(nil), cfg.AccessSigningSecret...),
		refreshSecret: append([]byte(nil), cfg.RefreshSigningSecret...),
		issuer:        cfg.Issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		clock:         clock,
	}, nil
}

// IssueAccessToken produces a signed short-lived JWT for the subject user.
// The returned time is the token's expiry.
func (s *TokenService) IssueAccessToken(userID, username string) (string, time.Time, error) {
	return s.issue(userID, username, TokenTypeAccess, s.accessTTL, s.accessSecret)
}

// IssueRefreshToken produces a signed long-lived JWT for the subject user.
// Callers are expected to persist the token so it can later be revoked.
func (s *TokenService) IssueRefreshToken(userID, username string) (string, time.Time, error) {
	return s.issue(userID, username, TokenTypeRefresh, s.refreshTTL, s.refreshSecret)
}

func (s *TokenService) issue(userID, username string, tokenType TokenType, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errMissingSubject
	}

	now := s.clock().UTC()
	expiresAt := now.Add(ttl).UTC()

	// A unique jti keeps two tokens minted within the same second from
	// colliding in the refresh token store.
	jti, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: jti generation failed: %w", err)
	}

	claims := TokenClaims{
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature and expiry against the secret for the
// expected class and returns the embedded claims. A structurally valid token
// of the wrong class fails with ErrTokenTypeMismatch.
func (s *TokenService) Verify(tokenString string, expectedType TokenType) (TokenClaims, error) {
	secret := s.accessSecret
	if expectedType == TokenTypeRefresh {
		secret = s.refreshSecret
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrTokenInvalid, t.Method.Alg())
			}
			return secret, nil
		},
		jwt.WithTimeFunc(s.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if parsed == nil || !parsed.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return TokenClaims{}, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return TokenClaims{}, ErrTokenInvalid
	}
	if claims.TokenType != expectedType {
		return TokenClaims{}, ErrTokenTypeMismatch
	}
	return *claims, nil
}
