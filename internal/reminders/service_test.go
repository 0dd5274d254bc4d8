package reminders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/scribelab/scribes/internal/identifier"
	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/users"
)

var testNow = time.Date(2026, 4, 18, 12, 0, 0, 0, time.UTC)

func newTestReminderService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reminders.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &notes.Note{}, &Reminder{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: identifier.NewUUIDProvider(),
		Clock:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func seedReminderNote(t *testing.T, db *gorm.DB, id, userID string) {
	t.Helper()
	note := notes.Note{ID: id, UserID: userID, Title: "note", Content: "body"}
	if err := db.Create(&note).Error; err != nil {
		t.Fatalf("failed to seed note: %v", err)
	}
}

func TestReminderCreate(t *testing.T) {
	service, db := newTestReminderService(t)
	seedReminderNote(t, db, "note-1", "user-1")
	ctx := context.Background()

	reminder, err := service.Create(ctx, "user-1", "note-1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if reminder.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", reminder.Status)
	}
	if !reminder.ScheduledAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected scheduled time: %v", reminder.ScheduledAt)
	}
}

func TestReminderCreateValidation(t *testing.T) {
	service, db := newTestReminderService(t)
	seedReminderNote(t, db, "note-1", "user-1")
	ctx := context.Background()

	// A reminder on another user's note behaves as if the note is absent.
	if _, err := service.Create(ctx, "user-2", "note-1", testNow.Add(time.Hour)); !errors.Is(err, notes.ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
	if _, err := service.Create(ctx, "user-1", "note-1", testNow.Add(-time.Minute)); !errors.Is(err, ErrScheduledInPast) {
		t.Fatalf("expected ErrScheduledInPast, got %v", err)
	}
	if _, err := service.Create(ctx, "user-1", "note-1", testNow); !errors.Is(err, ErrScheduledInPast) {
		t.Fatalf("expected ErrScheduledInPast for exact now, got %v", err)
	}
	if _, err := service.Create(ctx, "user-1", "note-1", testNow.Add(366*24*time.Hour)); !errors.Is(err, ErrScheduledTooFarAhead) {
		t.Fatalf("expected ErrScheduledTooFarAhead, got %v", err)
	}
}

func TestReminderDuplicatePendingConflicts(t *testing.T) {
	service, db := newTestReminderService(t)
	seedReminderNote(t, db, "note-1", "user-1")
	ctx := context.Background()
	when := testNow.Add(2 * time.Hour)

	first, err := service.Create(ctx, "user-1", "note-1", when)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.Create(ctx, "user-1", "note-1", when); !errors.Is(err, ErrDuplicateReminder) {
		t.Fatalf("expected ErrDuplicateReminder, got %v", err)
	}

	// A cancelled reminder frees the slot.
	if _, err := service.Cancel(ctx, first.ID, "user-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := service.Create(ctx, "user-1", "note-1", when); err != nil {
		t.Fatalf("expected create after cancel to succeed, got %v", err)
	}
}

func TestReminderListOrderedBySchedule(t *testing.T) {
	service, db := newTestReminderService(t)
	seedReminderNote(t, db, "note-1", "user-1")
	ctx := context.Background()

	for _, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		if _, err := service.Create(ctx, "user-1", "note-1", testNow.Add(offset)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	records, total, err := service.List(ctx, "user-1", 0, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(records) != 3 {
		t.Fatalf("expected 3 reminders, got total %d len %d", total, len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ScheduledAt.Before(records[i-1].ScheduledAt) {
			t.Fatal("expected ascending schedule order")
		}
	}

	if _, _, err := service.List(ctx, "user-1", 0, 0); !errors.Is(err, ErrInvalidPagination) {
		t.Fatalf("expected ErrInvalidPagination, got %v", err)
	}
}

func TestReminderUpdateAndCancel(t *testing.T) {
	service, db := newTestReminderService(t)
	seedReminderNote(t, db, "note-1", "user-1")
	ctx := context.Background()

	reminder, err := service.Create(ctx, "user-1", "note-1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	past := testNow.Add(-time.Hour)
	if _, err := service.Update(ctx, reminder.ID, "user-1", Patch{ScheduledAt: &past}); !errors.Is(err, ErrScheduledInPast) {
		t.Fatalf("expected ErrScheduledInPast, got %v", err)
	}

	later := testNow.Add(4 * time.Hour)
	updated, err := service.Update(ctx, reminder.ID, "user-1", Patch{ScheduledAt: &later})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.ScheduledAt.Equal(later) {
		t.Fatalf("expected rescheduled time, got %v", updated.ScheduledAt)
	}

	cancelled, err := service.Cancel(ctx, reminder.ID, "user-1")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	// Cancel keeps the record; only Delete removes it.
	if _, err := service.Get(ctx, reminder.ID, "user-1"); err != nil {
		t.Fatalf("expected cancelled reminder to remain, got %v", err)
	}
	if err := service.Delete(ctx, reminder.ID, "user-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := service.Get(ctx, reminder.ID, "user-1"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("expected ErrReminderNotFound, got %v", err)
	}
}

func TestReminderScopedToOwner(t *testing.T) {
	service, db := newTestReminderService(t)
	seedReminderNote(t, db, "note-1", "user-1")
	ctx := context.Background()

	reminder, err := service.Create(ctx, "user-1", "note-1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.Get(ctx, reminder.ID, "user-2"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("expected ErrReminderNotFound for foreign user, got %v", err)
	}
	if err := service.Delete(ctx, reminder.ID, "user-2"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("expected ErrReminderNotFound on foreign delete, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, err := ParseStatus(" Pending "); err != nil || status != StatusPending {
		t.Fatalf("expected pending, got %v %v", status, err)
	}
	if _, err := ParseStatus("snoozed"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
