package groups

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	dbpkg "github.com/mop1016/expense-tracker-backend/internal/db"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return NewService(conn), conn
}

func createUser(t *testing.T, conn *gorm.DB, username, fullName string) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		FullName: fullName,
		IsActive: true,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user %s: %v", username, errCreate)
	}
	return &user
}

func TestCreateGroupSeedsCreatorAsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	creator := mustUser(t, svc, "alice", "Alice Chen")

	detail, invited, errCreate := svc.CreateGroup(ctx, "家庭開銷", "shared bills", creator.ID, nil)
	if errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}
	if len(invited) != 0 {
		t.Fatalf("expected no invitations, got %d", len(invited))
	}
	if detail.MemberCount != 1 {
		t.Fatalf("expected member_count 1, got %d", detail.MemberCount)
	}
	if detail.Members[0].UserID != creator.ID || detail.Members[0].Role != models.RoleAdmin {
		t.Fatalf("expected creator as admin, got %+v", detail.Members[0])
	}
	if detail.CreatorUsername != "alice" {
		t.Fatalf("expected creator username alice, got %q", detail.CreatorUsername)
	}
}

func TestCreateGroupValidatesName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	creator := mustUser(t, svc, "alice", "Alice Chen")

	if _, _, errEmpty := svc.CreateGroup(ctx, "   ", "", creator.ID, nil); !apperr.IsValidation(errEmpty) {
		t.Fatalf("expected validation error for blank name, got %v", errEmpty)
	}

	long := strings.Repeat("名", 51)
	if _, _, errLong := svc.CreateGroup(ctx, long, "", creator.ID, nil); !apperr.IsValidation(errLong) {
		t.Fatalf("expected validation error for long name, got %v", errLong)
	}

	// 50 characters is still allowed.
	if _, _, errMax := svc.CreateGroup(ctx, strings.Repeat("名", 50), "", creator.ID, nil); errMax != nil {
		t.Fatalf("expected 50-char name to pass, got %v", errMax)
	}
}

func TestCreateGroupRejectsDuplicateActiveName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	creator := mustUser(t, svc, "alice", "Alice Chen")

	first, _, errFirst := svc.CreateGroup(ctx, "旅遊基金", "", creator.ID, nil)
	if errFirst != nil {
		t.Fatalf("create first group: %v", errFirst)
	}
	if _, _, errDup := svc.CreateGroup(ctx, "旅遊基金", "", creator.ID, nil); !apperr.IsConflict(errDup) {
		t.Fatalf("expected conflict for duplicate name, got %v", errDup)
	}

	// Deleting the first group frees the name.
	if errDelete := svc.DeleteGroup(ctx, first.ID, creator.ID); errDelete != nil {
		t.Fatalf("delete group: %v", errDelete)
	}
	if _, _, errAgain := svc.CreateGroup(ctx, "旅遊基金", "", creator.ID, nil); errAgain != nil {
		t.Fatalf("expected name to be reusable after delete, got %v", errAgain)
	}
}

func TestCreateGroupInvitesByNameBestEffort(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")
	createUser(t, conn, "carol", "Caroline Wu")

	detail, invited, errCreate := svc.CreateGroup(ctx, "室友分帳", "", creator.ID,
		[]string{"Bob Lin", "caroline", "Alice Chen", "Nobody Here", "  "})
	if errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}

	// Bob matches exactly, Caroline by substring. The creator's own name
	// and unresolvable names are skipped silently.
	if len(invited) != 2 {
		t.Fatalf("expected 2 invited users, got %d: %+v", len(invited), invited)
	}
	if invited[0].ID != bob.ID || invited[0].Username != "bob" {
		t.Fatalf("expected bob first, got %+v", invited[0])
	}
	if detail.PendingInvitations != 2 {
		t.Fatalf("expected 2 pending invitations, got %d", detail.PendingInvitations)
	}
	if detail.MemberCount != 1 {
		t.Fatalf("invitees must not be members yet, member_count=%d", detail.MemberCount)
	}
}

func TestInvitationAcceptFlow(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	if errInvite := svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "join us"); errInvite != nil {
		t.Fatalf("invite: %v", errInvite)
	}

	invitations, errList := svc.ListInvitations(ctx, bob.ID)
	if errList != nil {
		t.Fatalf("list invitations: %v", errList)
	}
	if len(invitations) != 1 || invitations[0].GroupName != "聚餐" || invitations[0].Message != "join us" {
		t.Fatalf("unexpected invitations: %+v", invitations)
	}

	if errAccept := svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, true); errAccept != nil {
		t.Fatalf("accept: %v", errAccept)
	}

	detail, _ := svc.GetGroup(ctx, group.ID)
	if detail.MemberCount != 2 {
		t.Fatalf("expected 2 members after accept, got %d", detail.MemberCount)
	}
	// Admin sorts before the newly joined member.
	if detail.Members[0].UserID != creator.ID || detail.Members[1].Role != models.RoleMember {
		t.Fatalf("unexpected member order: %+v", detail.Members)
	}
	if detail.PendingInvitations != 0 {
		t.Fatalf("expected no pending invitations, got %d", detail.PendingInvitations)
	}

	// The invitation is terminal now.
	if errAgain := svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, false); !apperr.IsConflict(errAgain) {
		t.Fatalf("expected conflict on second response, got %v", errAgain)
	}
}

func TestInvitationDeclineDoesNotJoin(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "")
	invitations, _ := svc.ListInvitations(ctx, bob.ID)

	if errDecline := svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, false); errDecline != nil {
		t.Fatalf("decline: %v", errDecline)
	}
	detail, _ := svc.GetGroup(ctx, group.ID)
	if detail.MemberCount != 1 {
		t.Fatalf("expected decline to leave membership untouched, got %d members", detail.MemberCount)
	}

	// Declining frees the invitee for a fresh invitation.
	if errReinvite := svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, ""); errReinvite != nil {
		t.Fatalf("reinvite after decline: %v", errReinvite)
	}
}

func TestRespondToInvitationOnlyByInvitee(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")
	mallory := createUser(t, conn, "mallory", "Mallory Hsu")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "")
	invitations, _ := svc.ListInvitations(ctx, bob.ID)

	if errSteal := svc.RespondToInvitation(ctx, invitations[0].ID, mallory.ID, true); !apperr.IsNotFound(errSteal) {
		t.Fatalf("expected not-found for foreign invitation, got %v", errSteal)
	}
}

func TestInviteUserPermissionsAndConflicts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")
	carol := createUser(t, conn, "carol", "Caroline Wu")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "")
	invitations, _ := svc.ListInvitations(ctx, bob.ID)
	_ = svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, true)

	// Plain members cannot invite.
	if errMember := svc.InviteUser(ctx, group.ID, bob.ID, carol.ID, ""); !apperr.IsPermission(errMember) {
		t.Fatalf("expected permission error for member inviter, got %v", errMember)
	}

	// Moderators can.
	if errPromote := conn.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		Update("role", models.RoleModerator).Error; errPromote != nil {
		t.Fatalf("promote bob: %v", errPromote)
	}
	if errModerator := svc.InviteUser(ctx, group.ID, bob.ID, carol.ID, ""); errModerator != nil {
		t.Fatalf("moderator invite: %v", errModerator)
	}

	// One pending invitation per invitee per group.
	if errDup := svc.InviteUser(ctx, group.ID, creator.ID, carol.ID, ""); !apperr.IsConflict(errDup) {
		t.Fatalf("expected conflict for duplicate pending invitation, got %v", errDup)
	}

	// Active members cannot be invited again.
	if errActive := svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, ""); !apperr.IsConflict(errActive) {
		t.Fatalf("expected conflict when inviting an active member, got %v", errActive)
	}
}

func TestRejoinAfterLeaveReusesMembershipRow(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "")
	invitations, _ := svc.ListInvitations(ctx, bob.ID)
	_ = svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, true)

	if errLeave := svc.LeaveGroup(ctx, group.ID, bob.ID); errLeave != nil {
		t.Fatalf("leave: %v", errLeave)
	}

	// A former member can be invited and can rejoin.
	if errReinvite := svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, ""); errReinvite != nil {
		t.Fatalf("reinvite after leave: %v", errReinvite)
	}
	invitations, _ = svc.ListInvitations(ctx, bob.ID)
	if errAccept := svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, true); errAccept != nil {
		t.Fatalf("accept rejoin: %v", errAccept)
	}

	var rows int64
	if errCount := conn.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		Count(&rows).Error; errCount != nil {
		t.Fatalf("count membership rows: %v", errCount)
	}
	if rows != 1 {
		t.Fatalf("expected a single membership row per (group,user), got %d", rows)
	}

	detail, _ := svc.GetGroup(ctx, group.ID)
	if detail.MemberCount != 2 {
		t.Fatalf("expected 2 active members after rejoin, got %d", detail.MemberCount)
	}
}

func TestRemoveMemberRules(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")
	carol := createUser(t, conn, "carol", "Caroline Wu")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	for _, invitee := range []*models.User{bob, carol} {
		_ = svc.InviteUser(ctx, group.ID, creator.ID, invitee.ID, "")
		invitations, _ := svc.ListInvitations(ctx, invitee.ID)
		_ = svc.RespondToInvitation(ctx, invitations[0].ID, invitee.ID, true)
	}

	// Plain members cannot remove anyone.
	if errMember := svc.RemoveMember(ctx, group.ID, bob.ID, carol.ID); !apperr.IsPermission(errMember) {
		t.Fatalf("expected permission error, got %v", errMember)
	}

	// Admins cannot remove themselves through this path.
	if errSelf := svc.RemoveMember(ctx, group.ID, creator.ID, creator.ID); !apperr.IsValidation(errSelf) {
		t.Fatalf("expected validation error for self-removal, got %v", errSelf)
	}

	if errRemove := svc.RemoveMember(ctx, group.ID, creator.ID, bob.ID); errRemove != nil {
		t.Fatalf("remove bob: %v", errRemove)
	}
	detail, _ := svc.GetGroup(ctx, group.ID)
	if detail.MemberCount != 2 {
		t.Fatalf("expected 2 active members after removal, got %d", detail.MemberCount)
	}

	// Removed members are no longer active targets.
	if errAgain := svc.RemoveMember(ctx, group.ID, creator.ID, bob.ID); !apperr.IsNotFound(errAgain) {
		t.Fatalf("expected not-found removing twice, got %v", errAgain)
	}
}

func TestLeaveGroupBlocksSoleAdmin(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "")
	invitations, _ := svc.ListInvitations(ctx, bob.ID)
	_ = svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, true)

	if errLeave := svc.LeaveGroup(ctx, group.ID, creator.ID); !apperr.IsConflict(errLeave) {
		t.Fatalf("expected conflict for sole admin leaving, got %v", errLeave)
	}

	// With a second admin the original one may leave.
	if errPromote := conn.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		Update("role", models.RoleAdmin).Error; errPromote != nil {
		t.Fatalf("promote bob: %v", errPromote)
	}
	if errLeave := svc.LeaveGroup(ctx, group.ID, creator.ID); errLeave != nil {
		t.Fatalf("leave with second admin: %v", errLeave)
	}

	if errOutsider := svc.LeaveGroup(ctx, group.ID, creator.ID); !apperr.IsNotFound(errOutsider) {
		t.Fatalf("expected not-found leaving twice, got %v", errOutsider)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")
	carol := createUser(t, conn, "carol", "Caroline Wu")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, bob.ID, "")
	invitations, _ := svc.ListInvitations(ctx, bob.ID)
	_ = svc.RespondToInvitation(ctx, invitations[0].ID, bob.ID, true)
	_ = svc.InviteUser(ctx, group.ID, creator.ID, carol.ID, "")

	// Even admins other than the creator cannot delete.
	if errPromote := conn.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		Update("role", models.RoleAdmin).Error; errPromote != nil {
		t.Fatalf("promote bob: %v", errPromote)
	}
	if errDelete := svc.DeleteGroup(ctx, group.ID, bob.ID); !apperr.IsPermission(errDelete) {
		t.Fatalf("expected permission error for non-creator, got %v", errDelete)
	}

	if errDelete := svc.DeleteGroup(ctx, group.ID, creator.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}

	if _, errGet := svc.GetGroup(ctx, group.ID); !apperr.IsNotFound(errGet) {
		t.Fatalf("expected not-found for deleted group, got %v", errGet)
	}

	var activeMembers int64
	_ = conn.Model(&models.GroupMember{}).
		Where("group_id = ? AND status = ?", group.ID, models.MemberActive).
		Count(&activeMembers).Error
	if activeMembers != 0 {
		t.Fatalf("expected all memberships removed, got %d active", activeMembers)
	}

	carolInvitations, _ := svc.ListInvitations(ctx, carol.ID)
	if len(carolInvitations) != 0 {
		t.Fatalf("expected pending invitations cancelled, got %+v", carolInvitations)
	}

	if errAgain := svc.DeleteGroup(ctx, group.ID, creator.ID); !apperr.IsNotFound(errAgain) {
		t.Fatalf("expected not-found deleting twice, got %v", errAgain)
	}
}

func TestListUserGroupsOnlyActiveMemberships(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	bob := createUser(t, conn, "bob", "Bob Lin")

	first, _, _ := svc.CreateGroup(ctx, "第一組", "", creator.ID, nil)
	second, _, _ := svc.CreateGroup(ctx, "第二組", "", bob.ID, nil)
	_ = svc.InviteUser(ctx, second.ID, bob.ID, creator.ID, "")
	invitations, _ := svc.ListInvitations(ctx, creator.ID)
	_ = svc.RespondToInvitation(ctx, invitations[0].ID, creator.ID, true)

	summaries, errList := svc.ListUserGroups(ctx, creator.ID)
	if errList != nil {
		t.Fatalf("list groups: %v", errList)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(summaries))
	}
	byID := map[uint64]GroupSummary{}
	for _, summary := range summaries {
		byID[summary.ID] = summary
	}
	if byID[first.ID].UserRole != models.RoleAdmin || byID[first.ID].MemberCount != 1 {
		t.Fatalf("unexpected summary for own group: %+v", byID[first.ID])
	}
	if byID[second.ID].UserRole != models.RoleMember || byID[second.ID].MemberCount != 2 {
		t.Fatalf("unexpected summary for joined group: %+v", byID[second.ID])
	}

	// Leaving drops the group from the listing.
	if errLeave := svc.LeaveGroup(ctx, second.ID, creator.ID); errLeave != nil {
		t.Fatalf("leave: %v", errLeave)
	}
	summaries, _ = svc.ListUserGroups(ctx, creator.ID)
	if len(summaries) != 1 || summaries[0].ID != first.ID {
		t.Fatalf("expected only the owned group, got %+v", summaries)
	}
}

func TestListMembersRequiresMembership(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := createUser(t, conn, "alice", "Alice Chen")
	outsider := createUser(t, conn, "eve", "Eve Wang")

	group, _, _ := svc.CreateGroup(ctx, "聚餐", "", creator.ID, nil)
	if _, errList := svc.ListMembers(ctx, group.ID, outsider.ID); !apperr.IsPermission(errList) {
		t.Fatalf("expected permission error for outsider, got %v", errList)
	}
	members, errList := svc.ListMembers(ctx, group.ID, creator.ID)
	if errList != nil || len(members) != 1 {
		t.Fatalf("expected 1 member, got %v err=%v", members, errList)
	}
}

// mustUser creates a user through the service's own database handle.
func mustUser(t *testing.T, svc *Service, username, fullName string) *models.User {
	t.Helper()
	return createUser(t, svc.db, username, fullName)
}
