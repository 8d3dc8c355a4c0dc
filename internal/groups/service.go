// Package groups owns the group directory, the membership ledger and the
// invitation workflow.
package groups

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	dbutil "github.com/mop1016/expense-tracker-backend/internal/db"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

// maxGroupNameRunes bounds group names, counted in characters so that
// multi-byte scripts are measured correctly.
const maxGroupNameRunes = 50

// roleRankExpr orders members admin first, then moderators, then members.
const roleRankExpr = "CASE role WHEN 'admin' THEN 0 WHEN 'moderator' THEN 1 ELSE 2 END"

// Service implements group, membership and invitation operations.
type Service struct {
	db *gorm.DB
}

// NewService constructs a Service backed by GORM.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// MemberInfo is one active member of a group.
type MemberInfo struct {
	UserID    uint64    `json:"user_id"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	JoinedAt  time.Time `json:"joined_at"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
}

// GroupDetail is a group with its creator and active member list.
type GroupDetail struct {
	ID                 uint64       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	CreatedBy          uint64       `json:"created_by"`
	CreatorName        string       `json:"creator_name"`
	CreatorUsername    string       `json:"creator_username"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	MemberCount        int          `json:"member_count"`
	PendingInvitations int64        `json:"pending_invitations"`
	Members            []MemberInfo `json:"members"`
}

// GroupSummary is one entry of a user's group listing.
type GroupSummary struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uint64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UserRole    string    `json:"user_role"`
	JoinedAt    time.Time `json:"joined_at"`
	MemberCount int64     `json:"member_count"`
}

// InvitedUser identifies a user who received an invitation during group
// creation.
type InvitedUser struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// InvitationInfo is one pending invitation addressed to a user.
type InvitationInfo struct {
	ID               uint64    `json:"id"`
	GroupID          uint64    `json:"group_id"`
	GroupName        string    `json:"group_name"`
	GroupDescription string    `json:"group_description"`
	InviterName      string    `json:"inviter_name"`
	InviterUsername  string    `json:"inviter_username"`
	Message          string    `json:"message"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateGroup creates a group, seeds the creator as admin and sends
// best-effort invitations to each resolvable member name. Unresolved or
// already-connected names are skipped without error.
func (s *Service) CreateGroup(ctx context.Context, name, description string, creatorID uint64, memberNames []string) (*GroupDetail, []InvitedUser, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, nil, apperr.Validation("group name must not be empty")
	}
	if len([]rune(trimmed)) > maxGroupNameRunes {
		return nil, nil, apperr.Validation("group name must not exceed 50 characters")
	}

	var groupID uint64
	invited := []InvitedUser{}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.Group{}).
			Where("name = ? AND created_by = ? AND is_active = ?", trimmed, creatorID, true).
			Count(&count).Error; errCount != nil {
			return apperr.Unexpected("check group name", errCount)
		}
		if count > 0 {
			return apperr.Conflict("you already have an active group with this name")
		}

		group := models.Group{
			Name:        trimmed,
			Description: strings.TrimSpace(description),
			CreatedBy:   creatorID,
			IsActive:    true,
		}
		if errCreate := tx.Create(&group).Error; errCreate != nil {
			return apperr.Unexpected("create group", errCreate)
		}
		groupID = group.ID

		creatorMember := models.GroupMember{
			GroupID:  group.ID,
			UserID:   creatorID,
			Role:     models.RoleAdmin,
			Status:   models.MemberActive,
			JoinedAt: time.Now().UTC(),
		}
		if errCreate := tx.Create(&creatorMember).Error; errCreate != nil {
			return apperr.Unexpected("add creator membership", errCreate)
		}

		for _, rawName := range memberNames {
			candidate := strings.TrimSpace(rawName)
			if candidate == "" {
				continue
			}
			user, ok := resolveUserByName(tx, candidate)
			if !ok || user.ID == creatorID {
				continue
			}
			if hasActiveMembership(tx, group.ID, user.ID) || hasPendingInvitation(tx, group.ID, user.ID) {
				continue
			}
			invitation := models.GroupInvitation{
				GroupID:   group.ID,
				InviterID: creatorID,
				InviteeID: user.ID,
				Status:    models.InvitationPending,
			}
			if errInvite := tx.Create(&invitation).Error; errInvite != nil {
				// Losing a pending-invitation race is not an error here.
				if isUniqueViolation(errInvite) {
					continue
				}
				log.WithError(errInvite).WithField("invitee_id", user.ID).Warn("skip invitation during group creation")
				continue
			}
			invited = append(invited, InvitedUser{ID: user.ID, Username: user.Username, FullName: user.FullName})
		}
		return nil
	})
	if errTx != nil {
		return nil, nil, errTx
	}

	detail, errDetail := s.GetGroup(ctx, groupID)
	if errDetail != nil {
		return nil, nil, errDetail
	}
	return detail, invited, nil
}

// GetGroup returns an active group with creator info, the ordered active
// member list and the count of pending invitations.
func (s *Service) GetGroup(ctx context.Context, groupID uint64) (*GroupDetail, error) {
	tx := s.db.WithContext(ctx)

	var group models.Group
	if errFind := tx.Preload("Creator").
		Where("id = ? AND is_active = ?", groupID, true).
		First(&group).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, apperr.Unexpected("load group", errFind)
	}

	members, errMembers := activeMembers(tx, groupID)
	if errMembers != nil {
		return nil, errMembers
	}

	var pending int64
	if errCount := tx.Model(&models.GroupInvitation{}).
		Where("group_id = ? AND status = ?", groupID, models.InvitationPending).
		Count(&pending).Error; errCount != nil {
		return nil, apperr.Unexpected("count pending invitations", errCount)
	}

	detail := &GroupDetail{
		ID:                 group.ID,
		Name:               group.Name,
		Description:        group.Description,
		CreatedBy:          group.CreatedBy,
		CreatedAt:          group.CreatedAt,
		UpdatedAt:          group.UpdatedAt,
		MemberCount:        len(members),
		PendingInvitations: pending,
		Members:            members,
	}
	if group.Creator != nil {
		detail.CreatorName = group.Creator.FullName
		detail.CreatorUsername = group.Creator.Username
	}
	return detail, nil
}

// ListUserGroups returns the active groups the user actively belongs to.
func (s *Service) ListUserGroups(ctx context.Context, userID uint64) ([]GroupSummary, error) {
	tx := s.db.WithContext(ctx)

	var rows []struct {
		models.Group
		UserRole string
		JoinedAt time.Time
	}
	if errFind := tx.Model(&models.Group{}).
		Select("groups.*, group_members.role AS user_role, group_members.joined_at AS joined_at").
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ? AND group_members.status = ? AND groups.is_active = ?", userID, models.MemberActive, true).
		Order("groups.created_at DESC").
		Find(&rows).Error; errFind != nil {
		return nil, apperr.Unexpected("list groups", errFind)
	}
	if len(rows) == 0 {
		return []GroupSummary{}, nil
	}

	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Group.ID)
	}
	var counts []struct {
		GroupID uint64
		Total   int64
	}
	if errCount := tx.Model(&models.GroupMember{}).
		Select("group_id, COUNT(*) AS total").
		Where("group_id IN ? AND status = ?", ids, models.MemberActive).
		Group("group_id").
		Find(&counts).Error; errCount != nil {
		return nil, apperr.Unexpected("count members", errCount)
	}
	countByGroup := make(map[uint64]int64, len(counts))
	for _, row := range counts {
		countByGroup[row.GroupID] = row.Total
	}

	summaries := make([]GroupSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, GroupSummary{
			ID:          row.Group.ID,
			Name:        row.Group.Name,
			Description: row.Group.Description,
			CreatedBy:   row.Group.CreatedBy,
			CreatedAt:   row.Group.CreatedAt,
			UserRole:    row.UserRole,
			JoinedAt:    row.JoinedAt,
			MemberCount: countByGroup[row.Group.ID],
		})
	}
	return summaries, nil
}

// DeleteGroup soft-deletes a group. Only the creator may delete; the
// active flag is cleared, memberships move to removed and pending
// invitations are cancelled.
func (s *Service) DeleteGroup(ctx context.Context, groupID, requesterID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if errFind := tx.Where("id = ? AND is_active = ?", groupID, true).First(&group).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return apperr.Unexpected("load group", errFind)
		}
		if group.CreatedBy != requesterID {
			return apperr.Permission("only the group creator can delete the group")
		}

		if errUpdate := tx.Model(&models.Group{}).
			Where("id = ?", groupID).
			Update("is_active", false).Error; errUpdate != nil {
			return apperr.Unexpected("deactivate group", errUpdate)
		}
		if errUpdate := tx.Model(&models.GroupMember{}).
			Where("group_id = ?", groupID).
			Update("status", models.MemberRemoved).Error; errUpdate != nil {
			return apperr.Unexpected("remove memberships", errUpdate)
		}
		now := time.Now().UTC()
		if errUpdate := tx.Model(&models.GroupInvitation{}).
			Where("group_id = ? AND status = ?", groupID, models.InvitationPending).
			Updates(map[string]any{
				"status":       models.InvitationCancelled,
				"responded_at": now,
			}).Error; errUpdate != nil {
			return apperr.Unexpected("cancel invitations", errUpdate)
		}
		return nil
	})
}

// ListMembers returns the active members of a group, admins first. The
// requester must be an active member.
func (s *Service) ListMembers(ctx context.Context, groupID, requesterID uint64) ([]MemberInfo, error) {
	tx := s.db.WithContext(ctx)
	if !hasActiveMembership(tx, groupID, requesterID) {
		return nil, apperr.Permission("you are not a member of this group")
	}
	return activeMembers(tx, groupID)
}

// RemoveMember marks the target's membership as removed. Only active
// admins may remove; self-removal must go through LeaveGroup.
func (s *Service) RemoveMember(ctx context.Context, groupID, adminID, targetID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, ok := activeRole(tx, groupID, adminID)
		if !ok || role != models.RoleAdmin {
			return apperr.Permission("only group admins can remove members")
		}
		if adminID == targetID {
			return apperr.Validation("use leave to exit the group yourself")
		}
		if _, ok := activeRole(tx, groupID, targetID); !ok {
			return apperr.NotFound("the user is not an active member of this group")
		}

		if errUpdate := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, targetID).
			Update("status", models.MemberRemoved).Error; errUpdate != nil {
			return apperr.Unexpected("remove member", errUpdate)
		}
		return nil
	})
}

// LeaveGroup marks the caller's membership as left. The sole active admin
// of a group cannot leave until another admin exists.
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, ok := activeRole(tx, groupID, userID)
		if !ok {
			return apperr.NotFound("you are not a member of this group")
		}

		if role == models.RoleAdmin {
			var admins int64
			if errCount := tx.Model(&models.GroupMember{}).
				Where("group_id = ? AND role = ? AND status = ?", groupID, models.RoleAdmin, models.MemberActive).
				Count(&admins).Error; errCount != nil {
				return apperr.Unexpected("count admins", errCount)
			}
			if admins <= 1 {
				return apperr.Conflict("you are the only admin; appoint another admin or delete the group first")
			}
		}

		if errUpdate := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Update("status", models.MemberLeft).Error; errUpdate != nil {
			return apperr.Unexpected("leave group", errUpdate)
		}
		return nil
	})
}

// InviteUser creates a pending invitation. The inviter must be an active
// admin or moderator; duplicates of an active membership or a pending
// invitation are conflicts.
func (s *Service) InviteUser(ctx context.Context, groupID, inviterID, inviteeID uint64, message string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, ok := activeRole(tx, groupID, inviterID)
		if !ok || (role != models.RoleAdmin && role != models.RoleModerator) {
			return apperr.Permission("you do not have permission to invite users")
		}
		if hasActiveMembership(tx, groupID, inviteeID) {
			return apperr.Conflict("the user is already a member of this group")
		}
		if hasPendingInvitation(tx, groupID, inviteeID) {
			return apperr.Conflict("the user already has a pending invitation")
		}

		invitation := models.GroupInvitation{
			GroupID:   groupID,
			InviterID: inviterID,
			InviteeID: inviteeID,
			Status:    models.InvitationPending,
			Message:   strings.TrimSpace(message),
		}
		if errCreate := tx.Create(&invitation).Error; errCreate != nil {
			// The partial unique index catches concurrent inviters.
			if isUniqueViolation(errCreate) {
				return apperr.Conflict("the user already has a pending invitation")
			}
			return apperr.Unexpected("create invitation", errCreate)
		}
		return nil
	})
}

// RespondToInvitation accepts or declines a pending invitation addressed
// to the user. Accepting upserts the membership row for the (group, user)
// pair, replacing any stale removed/left row.
func (s *Service) RespondToInvitation(ctx context.Context, invitationID, userID uint64, accept bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitation models.GroupInvitation
		if errFind := tx.Where("id = ? AND invitee_id = ?", invitationID, userID).
			First(&invitation).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("invitation not found")
			}
			return apperr.Unexpected("load invitation", errFind)
		}
		if invitation.Status != models.InvitationPending {
			return apperr.Conflict("the invitation has already been handled")
		}

		status := models.InvitationDeclined
		if accept {
			status = models.InvitationAccepted
		}
		now := time.Now().UTC()
		if errUpdate := tx.Model(&models.GroupInvitation{}).
			Where("id = ?", invitationID).
			Updates(map[string]any{
				"status":       status,
				"responded_at": now,
			}).Error; errUpdate != nil {
			return apperr.Unexpected("update invitation", errUpdate)
		}

		if !accept {
			return nil
		}

		member := models.GroupMember{
			GroupID:   invitation.GroupID,
			UserID:    userID,
			Role:      models.RoleMember,
			Status:    models.MemberActive,
			InvitedBy: &invitation.InviterID,
			JoinedAt:  now,
		}
		if errUpsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "status", "invited_by", "joined_at"}),
		}).Create(&member).Error; errUpsert != nil {
			return apperr.Unexpected("upsert membership", errUpsert)
		}
		return nil
	})
}

// ListInvitations returns the pending invitations addressed to a user,
// newest first.
func (s *Service) ListInvitations(ctx context.Context, userID uint64) ([]InvitationInfo, error) {
	var invitations []models.GroupInvitation
	if errFind := s.db.WithContext(ctx).
		Preload("Group").Preload("Inviter").
		Where("invitee_id = ? AND status = ?", userID, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error; errFind != nil {
		return nil, apperr.Unexpected("list invitations", errFind)
	}

	infos := make([]InvitationInfo, 0, len(invitations))
	for _, invitation := range invitations {
		info := InvitationInfo{
			ID:        invitation.ID,
			GroupID:   invitation.GroupID,
			Message:   invitation.Message,
			CreatedAt: invitation.CreatedAt,
		}
		if invitation.Group != nil {
			info.GroupName = invitation.Group.Name
			info.GroupDescription = invitation.Group.Description
		}
		if invitation.Inviter != nil {
			info.InviterName = invitation.Inviter.FullName
			info.InviterUsername = invitation.Inviter.Username
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// activeMembers loads a group's active members with user info, admins
// first, ties broken by join seniority.
func activeMembers(tx *gorm.DB, groupID uint64) ([]MemberInfo, error) {
	var members []models.GroupMember
	if errFind := tx.Preload("User").
		Where("group_id = ? AND status = ?", groupID, models.MemberActive).
		Order(roleRankExpr + ", joined_at ASC").
		Find(&members).Error; errFind != nil {
		return nil, apperr.Unexpected("load members", errFind)
	}

	infos := make([]MemberInfo, 0, len(members))
	for _, member := range members {
		info := MemberInfo{
			UserID:   member.UserID,
			Role:     member.Role,
			Status:   member.Status,
			JoinedAt: member.JoinedAt,
		}
		if member.User != nil {
			info.Username = member.User.Username
			info.FullName = member.User.FullName
			info.Email = member.User.Email
			info.AvatarURL = member.User.AvatarURL
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// resolveUserByName finds an active user by full name, preferring an
// exact match and falling back to the first substring match.
func resolveUserByName(tx *gorm.DB, name string) (models.User, bool) {
	var user models.User
	errExact := tx.Where("full_name = ? AND is_active = ?", name, true).First(&user).Error
	if errExact == nil {
		return user, true
	}
	if !errors.Is(errExact, gorm.ErrRecordNotFound) {
		return models.User{}, false
	}

	likeExpr := dbutil.CaseInsensitiveLikeExpr(tx, "full_name")
	pattern := dbutil.NormalizeLikePattern(tx, "%"+name+"%")
	errLike := tx.Where("is_active = ?", true).Where(likeExpr, pattern).First(&user).Error
	if errLike != nil {
		return models.User{}, false
	}
	return user, true
}

// activeRole returns the user's role when they are an active member.
func activeRole(tx *gorm.DB, groupID, userID uint64) (string, bool) {
	var member models.GroupMember
	errFind := tx.Select("role").
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.MemberActive).
		First(&member).Error
	if errFind != nil {
		return "", false
	}
	return member.Role, true
}

// hasActiveMembership reports whether the user is an active member.
func hasActiveMembership(tx *gorm.DB, groupID, userID uint64) bool {
	_, ok := activeRole(tx, groupID, userID)
	return ok
}

// hasPendingInvitation reports whether a pending invitation exists.
func hasPendingInvitation(tx *gorm.DB, groupID, userID uint64) bool {
	var count int64
	if errCount := tx.Model(&models.GroupInvitation{}).
		Where("group_id = ? AND invitee_id = ? AND status = ?", groupID, userID, models.InvitationPending).
		Count(&count).Error; errCount != nil {
		return false
	}
	return count > 0
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
