package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/auth"
	"github.com/scribelab/scribes/internal/circles"
	"github.com/scribelab/scribes/internal/identifier"
	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/reminders"
	"github.com/scribelab/scribes/internal/users"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "server.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&users.User{},
		&auth.RefreshToken{},
		&notes.Note{},
		&circles.Circle{},
		&circles.CircleMember{},
		&circles.CircleNote{},
		&reminders.Reminder{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	ids := identifier.NewUUIDProvider()
	tokenService, err := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSigningSecret:  []byte("access-secret-0123456789abcdef"),
		RefreshSigningSecret: []byte("refresh-secret-0123456789abcdef"),
		Issuer:               "scribes-test",
		AccessTokenTTL:       time.Minute,
		RefreshTokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}
	refreshStore, err := auth.NewRefreshTokenStore(auth.RefreshTokenStoreConfig{Database: db, IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to create refresh store: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Hasher:     auth.NewPasswordHasher(4),
		Revoker:    refreshStore,
	})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	noteService, err := notes.NewService(notes.ServiceConfig{Database: db, IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to create note service: %v", err)
	}
	circleService, err := circles.NewService(circles.ServiceConfig{Database: db, IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to create circle service: %v", err)
	}
	reminderService, err := reminders.NewService(reminders.ServiceConfig{Database: db, IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to create reminder service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Tokens:        tokenService,
		RefreshTokens: refreshStore,
		Users:         userService,
		Circles:       circleService,
		Notes:         noteService,
		Reminders:     reminderService,
	})
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func registerAndLogin(t *testing.T, handler http.Handler, username string) tokenPairPayload {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "sufficiently-long",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	recorder = doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": "sufficiently-long",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var pair tokenPairPayload
	decodeBody(t, recorder, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected complete token pair, got %+v", pair)
	}
	return pair
}

func TestAuthLifecycleOverHTTP(t *testing.T) {
	handler := newTestHandler(t)
	pair := registerAndLogin(t, handler, "alice")

	recorder := doJSON(t, handler, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("me failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var me userPayload
	decodeBody(t, recorder, &me)
	if me.Username != "alice" {
		t.Fatalf("expected alice, got %q", me.Username)
	}

	// Rotation: the old refresh token dies with the exchange.
	recorder = doJSON(t, handler, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	if recorder.Code != http.StatusOK {
		t.Fatalf("refresh failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var rotated tokenPairPayload
	decodeBody(t, recorder, &rotated)
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a fresh refresh token after rotation")
	}

	recorder = doJSON(t, handler, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 replaying rotated token, got %d", recorder.Code)
	}

	// Logout revokes the live token; a later refresh with it fails.
	recorder = doJSON(t, handler, http.MethodPost, "/auth/logout", "", map[string]string{"refresh_token": rotated.RefreshToken})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("logout failed with %d", recorder.Code)
	}
	recorder = doJSON(t, handler, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": rotated.RefreshToken})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", recorder.Code)
	}
}

func TestRegisterConflict(t *testing.T) {
	handler := newTestHandler(t)
	registerAndLogin(t, handler, "alice")

	recorder := doJSON(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"username": "someone-else",
		"password": "sufficiently-long",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodGet, "/notes", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/notes", "not-a-real-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", recorder.Code)
	}
}

func TestNoteEndpoints(t *testing.T) {
	handler := newTestHandler(t)
	pair := registerAndLogin(t, handler, "alice")

	recorder := doJSON(t, handler, http.MethodPost, "/notes", pair.AccessToken, map[string]interface{}{
		"title":   "Sunday sermon",
		"content": "Notes on the sermon.",
		"tags":    []string{"sermon"},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create note failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var created notePayload
	decodeBody(t, recorder, &created)

	recorder = doJSON(t, handler, http.MethodGet, "/notes?limit=10", pair.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list notes failed with %d", recorder.Code)
	}
	var listing struct {
		Items []notePayload `json:"items"`
		Total int64         `json:"total"`
	}
	decodeBody(t, recorder, &listing)
	if listing.Total != 1 || len(listing.Items) != 1 {
		t.Fatalf("expected one note, got %+v", listing)
	}

	recorder = doJSON(t, handler, http.MethodPut, "/notes/"+created.ID, pair.AccessToken, map[string]string{"title": "Renamed"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("update note failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var updated notePayload
	decodeBody(t, recorder, &updated)
	if updated.Title != "Renamed" {
		t.Fatalf("expected renamed note, got %q", updated.Title)
	}

	recorder = doJSON(t, handler, http.MethodDelete, "/notes/"+created.ID, pair.AccessToken, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("delete note failed with %d", recorder.Code)
	}
	recorder = doJSON(t, handler, http.MethodGet, "/notes/"+created.ID, pair.AccessToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", recorder.Code)
	}
}

func TestCircleMembershipOverHTTP(t *testing.T) {
	handler := newTestHandler(t)
	owner := registerAndLogin(t, handler, "owner")
	guest := registerAndLogin(t, handler, "guest")

	recorder := doJSON(t, handler, http.MethodGet, "/auth/me", guest.AccessToken, nil)
	var guestUser userPayload
	decodeBody(t, recorder, &guestUser)

	recorder = doJSON(t, handler, http.MethodPost, "/circles", owner.AccessToken, map[string]interface{}{
		"name":       "Study Group",
		"is_private": true,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create circle failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var circle circlePayload
	decodeBody(t, recorder, &circle)
	if circle.MemberCount != 1 {
		t.Fatalf("expected owner-only count 1, got %d", circle.MemberCount)
	}

	// Guests cannot read a private circle before joining.
	recorder = doJSON(t, handler, http.MethodGet, "/circles/"+circle.ID, guest.AccessToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodPost, "/circles/"+circle.ID+"/members/invite", owner.AccessToken, map[string]string{
		"user_id": guestUser.ID,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("invite failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var invited memberPayload
	decodeBody(t, recorder, &invited)
	if invited.Status != "invited" {
		t.Fatalf("expected invited status, got %q", invited.Status)
	}

	active := "active"
	recorder = doJSON(t, handler, http.MethodPut, "/circles/"+circle.ID+"/members/"+guestUser.ID, owner.AccessToken, map[string]*string{
		"status": &active,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("member update failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/circles/"+circle.ID, guest.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected active member to read circle, got %d", recorder.Code)
	}

	// The owner row's role is protected.
	ownerRole := "member"
	recorder = doJSON(t, handler, http.MethodGet, "/auth/me", owner.AccessToken, nil)
	var ownerUser userPayload
	decodeBody(t, recorder, &ownerUser)
	recorder = doJSON(t, handler, http.MethodPut, "/circles/"+circle.ID+"/members/"+ownerUser.ID, owner.AccessToken, map[string]*string{
		"role": &ownerRole,
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 demoting owner, got %d", recorder.Code)
	}
}

func TestShareNoteOverHTTP(t *testing.T) {
	handler := newTestHandler(t)
	owner := registerAndLogin(t, handler, "owner")

	recorder := doJSON(t, handler, http.MethodPost, "/circles", owner.AccessToken, map[string]string{"name": "Readers"})
	var circle circlePayload
	decodeBody(t, recorder, &circle)

	recorder = doJSON(t, handler, http.MethodPost, "/notes", owner.AccessToken, map[string]string{
		"title":   "Shared",
		"content": "body",
	})
	var note notePayload
	decodeBody(t, recorder, &note)

	recorder = doJSON(t, handler, http.MethodPost, "/circles/"+circle.ID+"/notes/"+note.ID, owner.AccessToken, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("share failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/circles/"+circle.ID+"/notes", owner.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list shared failed with %d", recorder.Code)
	}
	var listing struct {
		Items []notePayload `json:"items"`
		Total int64         `json:"total"`
	}
	decodeBody(t, recorder, &listing)
	if listing.Total != 1 {
		t.Fatalf("expected one shared note, got %+v", listing)
	}

	recorder = doJSON(t, handler, http.MethodDelete, "/circles/"+circle.ID+"/notes/"+note.ID, owner.AccessToken, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unshare failed with %d", recorder.Code)
	}
	recorder = doJSON(t, handler, http.MethodDelete, "/circles/"+circle.ID+"/notes/"+note.ID, owner.AccessToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 unsharing absent link, got %d", recorder.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{users.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrTokenExpired, http.StatusUnauthorized},
		{circles.ErrAccessDenied, http.StatusForbidden},
		{circles.ErrOwnerCannotLeave, http.StatusForbidden},
		{circles.ErrCircleNotFound, http.StatusNotFound},
		{notes.ErrNoteNotFound, http.StatusNotFound},
		{users.ErrEmailTaken, http.StatusConflict},
		{reminders.ErrDuplicateReminder, http.StatusConflict},
		{notes.ErrTitleRequired, http.StatusBadRequest},
		{reminders.ErrScheduledInPast, http.StatusBadRequest},
		{errInvalidAuthorization, http.StatusInternalServerError},
	}
	for _, testCase := range cases {
		if got := statusForError(testCase.err); got != testCase.want {
			t.Fatalf("statusForError(%v) = %d, want %d", testCase.err, got, testCase.want)
		}
	}
}
