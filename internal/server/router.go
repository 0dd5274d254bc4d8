package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scribelab/scribes/internal/auth"
	"github.com/scribelab/scribes/internal/circles"
	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/reminders"
	"github.com/scribelab/scribes/internal/users"
)

const (
	userIDContextKey = "scribes_user_id"

	defaultListLimit = 100
)

var (
	errMissingTokenService  = errors.New("token service dependency required")
	errMissingRefreshStore  = errors.New("refresh token store dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingCircleService = errors.New("circle service dependency required")
	errMissingNoteService   = errors.New("note service dependency required")
	errMissingReminders     = errors.New("reminder service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenService issues and verifies the two JWT classes.
type TokenService interface {
	IssueAccessToken(userID, username string) (string, time.Time, error)
	IssueRefreshToken(userID, username string) (string, time.Time, error)
	Verify(token string, expectedType auth.TokenType) (auth.TokenClaims, error)
}

// RefreshTokenStore persists refresh tokens and their revocation state.
type RefreshTokenStore interface {
	Persist(ctx context.Context, token, userID string, expiresAt time.Time) (auth.RefreshToken, error)
	IsValid(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// Dependencies wires the services the router needs.
type Dependencies struct {
	Tokens        TokenService
	RefreshTokens RefreshTokenStore
	Users         *users.Service
	Circles       *circles.Service
	Notes         *notes.Service
	Reminders     *reminders.Service
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router with all routes registered.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenService
	}
	if deps.RefreshTokens == nil {
		return nil, errMissingRefreshStore
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Circles == nil {
		return nil, errMissingCircleService
	}
	if deps.Notes == nil {
		return nil, errMissingNoteService
	}
	if deps.Reminders == nil {
		return nil, errMissingReminders
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.Tokens,
		refreshTokens: deps.RefreshTokens,
		users:         deps.Users,
		circles:       deps.Circles,
		notes:         deps.Notes,
		reminders:     deps.Reminders,
		logger:        logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/refresh", handler.handleRefresh)
	router.POST("/auth/logout", handler.handleLogout)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	{
		protected.GET("/auth/me", handler.handleMe)
		protected.POST("/auth/logout-all", handler.handleLogoutAll)
		protected.PUT("/auth/password", handler.handleChangePassword)
		protected.PUT("/auth/profile", handler.handleUpdateProfile)

		protected.POST("/circles", handler.handleCreateCircle)
		protected.GET("/circles", handler.handleListCircles)
		protected.GET("/circles/:circleID", handler.handleGetCircle)
		protected.GET("/circles/:circleID/detail", handler.handleGetCircleDetail)
		protected.PUT("/circles/:circleID", handler.handleUpdateCircle)
		protected.DELETE("/circles/:circleID", handler.handleDeleteCircle)

		protected.GET("/circles/:circleID/members", handler.handleListMembers)
		protected.POST("/circles/:circleID/members", handler.handleAddMember)
		protected.POST("/circles/:circleID/members/invite", handler.handleInviteMember)
		protected.PUT("/circles/:circleID/members/:userID", handler.handleUpdateMember)
		protected.DELETE("/circles/:circleID/members/:userID", handler.handleRemoveMember)

		protected.GET("/circles/:circleID/notes", handler.handleListSharedNotes)
		protected.POST("/circles/:circleID/notes/:noteID", handler.handleShareNote)
		protected.DELETE("/circles/:circleID/notes/:noteID", handler.handleUnshareNote)

		protected.POST("/notes", handler.handleCreateNote)
		protected.GET("/notes", handler.handleListNotes)
		protected.GET("/notes/:noteID", handler.handleGetNote)
		protected.PUT("/notes/:noteID", handler.handleUpdateNote)
		protected.DELETE("/notes/:noteID", handler.handleDeleteNote)

		protected.POST("/reminders", handler.handleCreateReminder)
		protected.GET("/reminders", handler.handleListReminders)
		protected.GET("/reminders/:reminderID", handler.handleGetReminder)
		protected.PUT("/reminders/:reminderID", handler.handleUpdateReminder)
		protected.POST("/reminders/:reminderID/cancel", handler.handleCancelReminder)
		protected.DELETE("/reminders/:reminderID", handler.handleDeleteReminder)
	}

	return router, nil
}

type httpHandler struct {
	tokens        TokenService
	refreshTokens RefreshTokenStore
	users         *users.Service
	circles       *circles.Service
	notes         *notes.Service
	reminders     *reminders.Service
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.Verify(token, auth.TokenTypeAccess)
	if err != nil {
		h.logger.Warn("access token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Next()
}

func (h *httpHandler) requesterID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}

// renderError maps domain errors onto HTTP status codes per the taxonomy:
// credential failures 401, authorization failures 403, absent resources 404,
// business conflicts 409, malformed input 400, everything else 500.
func (h *httpHandler) renderError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, users.ErrAccountDisabled),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenTypeMismatch),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, circles.ErrAccessDenied),
		errors.Is(err, circles.ErrOwnerRoleImmutable),
		errors.Is(err, circles.ErrOwnerCannotLeave):
		return http.StatusForbidden
	case errors.Is(err, circles.ErrCircleNotFound),
		errors.Is(err, circles.ErrMemberNotFound),
		errors.Is(err, circles.ErrNotShared),
		errors.Is(err, notes.ErrNoteNotFound),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, reminders.ErrReminderNotFound):
		return http.StatusNotFound
	case errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, users.ErrUsernameTaken),
		errors.Is(err, reminders.ErrDuplicateReminder):
		return http.StatusConflict
	case errors.Is(err, circles.ErrNameRequired),
		errors.Is(err, circles.ErrInvalidRole),
		errors.Is(err, circles.ErrInvalidStatus),
		errors.Is(err, circles.ErrInvalidPagination),
		errors.Is(err, notes.ErrTitleRequired),
		errors.Is(err, notes.ErrContentRequired),
		errors.Is(err, notes.ErrInvalidPagination),
		errors.Is(err, users.ErrEmailRequired),
		errors.Is(err, users.ErrUsernameRequired),
		errors.Is(err, users.ErrPasswordTooShort),
		errors.Is(err, reminders.ErrScheduledInPast),
		errors.Is(err, reminders.ErrScheduledTooFarAhead),
		errors.Is(err, reminders.ErrInvalidStatus),
		errors.Is(err, reminders.ErrInvalidPagination):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// pagination reads skip/limit query parameters with sane defaults.
func pagination(c *gin.Context) (int, int) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil {
		skip = 0
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil {
		limit = defaultListLimit
	}
	return skip, limit
}
