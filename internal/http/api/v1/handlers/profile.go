package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mop1016/expense-tracker-backend/internal/models"
	"github.com/mop1016/expense-tracker-backend/internal/users"
)

// ProfileHandler handles user profile endpoints.
type ProfileHandler struct {
	users *users.Service
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(usersService *users.Service) *ProfileHandler {
	return &ProfileHandler{users: usersService}
}

// Get returns the current user's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	user, errGet := h.users.Get(c.Request.Context(), getUserID(c))
	if errGet != nil {
		renderError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, profilePayload(user))
}

// Update applies a partial profile update.
func (h *ProfileHandler) Update(c *gin.Context) {
	var patch users.ProfilePatch
	if errBind := c.ShouldBindJSON(&patch); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, errUpdate := h.users.UpdateProfile(c.Request.Context(), getUserID(c), patch)
	if errUpdate != nil {
		renderError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, profilePayload(user))
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword verifies and updates the user's password.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errChange := h.users.ChangePassword(c.Request.Context(), getUserID(c), body.OldPassword, body.NewPassword); errChange != nil {
		renderError(c, errChange)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Search finds users for invite pickers.
func (h *ProfileHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	found, errSearch := h.users.Search(c.Request.Context(), getUserID(c), c.Query("q"), limit)
	if errSearch != nil {
		renderError(c, errSearch)
		return
	}

	results := make([]gin.H, 0, len(found))
	for i := range found {
		results = append(results, gin.H{
			"id":        found[i].ID,
			"username":  found[i].Username,
			"full_name": found[i].FullName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}

func profilePayload(user *models.User) gin.H {
	return gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"full_name":      user.FullName,
		"phone":          user.Phone,
		"avatar_url":     user.AvatarURL,
		"email_verified": user.EmailVerified,
		"totp_enabled":   user.TOTPSecret != "",
		"settings":       user.Settings,
		"last_login":     user.LastLogin,
		"created_at":     user.CreatedAt,
		"updated_at":     user.UpdatedAt,
	}
}
