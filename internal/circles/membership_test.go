package circles

import (
	"context"
	"errors"
	"testing"

	"github.com/scribelab/scribes/internal/users"
)

func TestAddMemberUpsert(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "joiner")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "Upsert")

	first, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "joiner"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if first.Role != RoleMember || first.Status != StatusActive {
		t.Fatalf("expected member/active defaults, got %s/%s", first.Role, first.Status)
	}

	// Adding the same user again updates the existing row in place.
	second, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "joiner", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same membership row, got %s and %s", first.ID, second.ID)
	}
	if second.Role != RoleAdmin {
		t.Fatalf("expected role upgraded to admin, got %s", second.Role)
	}

	var count int64
	if err := db.Model(&CircleMember{}).Where("circle_id = ? AND user_id = ?", circle.ID, "joiner").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single membership row, got %d", count)
	}
}

func TestAddMemberRequiresAuthorityAndKnownUser(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "member")
	seedUser(t, db, "target")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "Guarded")
	if _, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "member"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	_, err := service.AddMember(ctx, circle.ID, "member", MemberInput{UserID: "target"})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for plain member, got %v", err)
	}

	_, err = service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "ghost"})
	if !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInviteMemberLifecycle(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "admin")
	seedUser(t, db, "guest")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "Invites")
	if _, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "admin", Role: RoleAdmin}); err != nil {
		t.Fatalf("add admin failed: %v", err)
	}

	invited, err := service.InviteMember(ctx, circle.ID, "owner", InviteInput{UserID: "guest"})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if invited.Status != StatusInvited {
		t.Fatalf("expected invited status, got %s", invited.Status)
	}
	if invited.InvitedBy == nil || *invited.InvitedBy != "owner" {
		t.Fatalf("expected inviter owner, got %v", invited.InvitedBy)
	}

	// Re-inviting a pending user records the new inviter.
	reinvited, err := service.InviteMember(ctx, circle.ID, "admin", InviteInput{UserID: "guest"})
	if err != nil {
		t.Fatalf("re-invite failed: %v", err)
	}
	if reinvited.ID != invited.ID {
		t.Fatalf("expected same row, got %s and %s", invited.ID, reinvited.ID)
	}
	if reinvited.InvitedBy == nil || *reinvited.InvitedBy != "admin" {
		t.Fatalf("expected inviter admin, got %v", reinvited.InvitedBy)
	}
}

func TestInviteActiveMemberIsNoOp(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "member")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "NoOp")
	added, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "member", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := service.InviteMember(ctx, circle.ID, "owner", InviteInput{UserID: "member"})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if result.ID != added.ID || result.Status != StatusActive || result.Role != RoleAdmin {
		t.Fatalf("expected active row returned unchanged, got %+v", result)
	}
}

func TestUpdateMemberOwnerRoleImmutable(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "member")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "Immutable")
	if _, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: "member"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	demoted := RoleMember
	_, err := service.UpdateMember(ctx, circle.ID, "owner", "owner", MemberPatch{Role: &demoted})
	if !errors.Is(err, ErrOwnerRoleImmutable) {
		t.Fatalf("expected ErrOwnerRoleImmutable, got %v", err)
	}

	// Changing the owner row's status without touching the role is allowed.
	inactive := StatusInactive
	if _, err := service.UpdateMember(ctx, circle.ID, "owner", "owner", MemberPatch{Status: &inactive}); err != nil {
		t.Fatalf("status change failed: %v", err)
	}

	promoted := RoleAdmin
	updated, err := service.UpdateMember(ctx, circle.ID, "member", "owner", MemberPatch{Role: &promoted})
	if err != nil {
		t.Fatalf("promotion failed: %v", err)
	}
	if updated.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %s", updated.Role)
	}
}

func TestUpdateMemberUnknownRow(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "stranger")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "Sparse")
	promoted := RoleAdmin
	_, err := service.UpdateMember(ctx, circle.ID, "stranger", "owner", MemberPatch{Role: &promoted})
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestRemoveMemberRules(t *testing.T) {
	db := openCirclesTestDB(t)
	service := newTestCircleService(t, db)
	seedUser(t, db, "owner")
	seedUser(t, db, "admin")
	seedUser(t, db, "member")
	seedUser(t, db, "leaver")
	ctx := context.Background()

	circle := mustCreateCircle(t, service, "owner", "Removals")
	for user, role := range map[string]Role{"admin": RoleAdmin, "member": RoleMember, "leaver": RoleMember} {
		if _, err := service.AddMember(ctx, circle.ID, "owner", MemberInput{UserID: user, Role: role}); err != nil {
			t.Fatalf("add %s failed: %v", user, err)
		}
	}

	// The owner may never leave while holding the owner role.
	if err := service.RemoveMember(ctx, circle.ID, "owner", "owner"); !errors.Is(err, ErrOwnerCannotLeave) {
		t.Fatalf("expected ErrOwnerCannotLeave, got %v", err)
	}
	// Nobody removes the owner either.
	if err := service.RemoveMember(ctx, circle.ID, "owner", "admin"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied removing owner, got %v", err)
	}

	// Any non-owner member may remove themselves.
	if err := service.RemoveMember(ctx, circle.ID, "leaver", "leaver"); err != nil {
		t.Fatalf("self removal failed: %v", err)
	}
	// Plain members cannot remove others.
	if err := service.RemoveMember(ctx, circle.ID, "admin", "member"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for plain member, got %v", err)
	}
	// Authorities can.
	if err := service.RemoveMember(ctx, circle.ID, "member", "admin"); err != nil {
		t.Fatalf("authority removal failed: %v", err)
	}

	// Removal is a hard delete; the row is gone, not flagged.
	var count int64
	if err := db.Model(&CircleMember{}).Where("circle_id = ? AND user_id IN ?", circle.ID, []string{"member", "leaver"}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected removed rows to be deleted, found %d", count)
	}

	if err := service.RemoveMember(ctx, circle.ID, "member", "owner"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound after removal, got %v", err)
	}
}
