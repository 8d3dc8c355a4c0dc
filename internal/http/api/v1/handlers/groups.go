package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/groups"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

// GroupHandler handles group, membership and invitation endpoints.
type GroupHandler struct {
	db     *gorm.DB
	groups *groups.Service
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(db *gorm.DB, groupsService *groups.Service) *GroupHandler {
	return &GroupHandler{db: db, groups: groupsService}
}

// createGroupRequest defines the request body for group creation.
// Members is a list of display names to invite immediately.
type createGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// Create creates a group and invites the named users.
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	detail, invited, errCreate := h.groups.CreateGroup(c.Request.Context(), body.Name, body.Description, getUserID(c), body.Members)
	if errCreate != nil {
		renderError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": detail, "invited_users": invited})
}

// List returns the groups the current user belongs to.
func (h *GroupHandler) List(c *gin.Context) {
	summaries, errList := h.groups.ListUserGroups(c.Request.Context(), getUserID(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": summaries})
}

// Get returns one group's detail. Only active members may view it.
func (h *GroupHandler) Get(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if !h.isActiveMember(c, groupID, getUserID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this group"})
		return
	}

	detail, errGet := h.groups.GetGroup(c.Request.Context(), groupID)
	if errGet != nil {
		renderError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": detail})
}

// Delete soft-deletes a group. Only the creator may delete it.
func (h *GroupHandler) Delete(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if errDelete := h.groups.DeleteGroup(c.Request.Context(), groupID, getUserID(c)); errDelete != nil {
		renderError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Members lists the group's active members.
func (h *GroupHandler) Members(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	members, errList := h.groups.ListMembers(c.Request.Context(), groupID, getUserID(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// RemoveMember removes another member from the group.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	if errRemove := h.groups.RemoveMember(c.Request.Context(), groupID, getUserID(c), targetID); errRemove != nil {
		renderError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Leave removes the current user from the group.
func (h *GroupHandler) Leave(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if errLeave := h.groups.LeaveGroup(c.Request.Context(), groupID, getUserID(c)); errLeave != nil {
		renderError(c, errLeave)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// inviteRequest defines the request body for invitations.
type inviteRequest struct {
	InviteeID uint64 `json:"invitee_id"`
	Message   string `json:"message"`
}

// Invite creates a pending invitation for another user.
func (h *GroupHandler) Invite(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body inviteRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.InviteeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invitee_id is required"})
		return
	}

	if errInvite := h.groups.InviteUser(c.Request.Context(), groupID, getUserID(c), body.InviteeID, body.Message); errInvite != nil {
		renderError(c, errInvite)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// Invitations lists the current user's pending invitations.
func (h *GroupHandler) Invitations(c *gin.Context) {
	invitations, errList := h.groups.ListInvitations(c.Request.Context(), getUserID(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

// respondRequest defines the request body for invitation responses.
type respondRequest struct {
	Action string `json:"action"` // accept or decline
}

// Respond accepts or declines one of the user's invitations.
func (h *GroupHandler) Respond(c *gin.Context) {
	invitationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body respondRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var accept bool
	switch body.Action {
	case "accept":
		accept = true
	case "decline":
		accept = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be accept or decline"})
		return
	}

	if errRespond := h.groups.RespondToInvitation(c.Request.Context(), invitationID, getUserID(c), accept); errRespond != nil {
		renderError(c, errRespond)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *GroupHandler) isActiveMember(c *gin.Context, groupID, userID uint64) bool {
	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.MemberActive).
		Count(&count).Error; errCount != nil {
		return false
	}
	return count > 0
}
