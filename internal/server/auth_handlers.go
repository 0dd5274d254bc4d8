package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scribelab/scribes/internal/auth"
	"github.com/scribelab/scribes/internal/users"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.users.Register(c.Request.Context(), users.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToPayload(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}
	pair, err := h.issueTokenPair(c, user)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh rotates a refresh token: the presented token must pass both
// signature verification and the store's revocation check, and is revoked
// before the replacement pair is issued.
func (h *httpHandler) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	claims, err := h.tokens.Verify(req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		h.renderError(c, err)
		return
	}
	valid, err := h.refreshTokens.IsValid(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !valid {
		h.renderError(c, auth.ErrTokenInvalid)
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), claims.Subject)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !user.IsActive {
		h.renderError(c, users.ErrAccountDisabled)
		return
	}
	if _, err := h.refreshTokens.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		h.renderError(c, err)
		return
	}
	pair, err := h.issueTokenPair(c, user)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// handleLogout revokes the presented refresh token. Revoking an unknown or
// already revoked token is a no-op, so the endpoint is idempotent.
func (h *httpHandler) handleLogout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	revoked, err := h.refreshTokens.Revoke(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !revoked {
		h.logger.Debug("logout for unknown refresh token")
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLogoutAll(c *gin.Context) {
	count, err := h.refreshTokens.RevokeAllForUser(c.Request.Context(), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.logger.Info("revoked all refresh tokens", zap.Int64("count", count))
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToPayload(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *httpHandler) handleChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	err := h.users.ChangePassword(c.Request.Context(), h.requesterID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateProfileRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), h.requesterID(c), users.ProfilePatch{
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToPayload(user))
}

func (h *httpHandler) issueTokenPair(c *gin.Context, user users.User) (tokenPairPayload, error) {
	accessToken, accessExpiry, err := h.tokens.IssueAccessToken(user.ID, user.Username)
	if err != nil {
		return tokenPairPayload{}, err
	}
	refreshToken, refreshExpiry, err := h.tokens.IssueRefreshToken(user.ID, user.Username)
	if err != nil {
		return tokenPairPayload{}, err
	}
	if _, err := h.refreshTokens.Persist(c.Request.Context(), refreshToken, user.ID, refreshExpiry); err != nil {
		return tokenPairPayload{}, err
	}
	return tokenPairPayload{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(accessExpiry).Seconds()),
	}, nil
}
