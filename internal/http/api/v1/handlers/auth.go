package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	"github.com/mop1016/expense-tracker-backend/internal/users"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	users *users.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(usersService *users.Service) *AuthHandler {
	return &AuthHandler{users: usersService}
}

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	var body users.RegisterInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, errRegister := h.users.Register(c.Request.Context(), body)
	if errRegister != nil {
		renderError(c, errRegister)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"full_name": user.FullName,
	})
}

// loginRequest defines the request body for logins. Identifier may be
// a username or an email address.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token, user, errLogin := h.users.Authenticate(c.Request.Context(), body.Username, body.Password, body.TOTPCode)
	if errLogin != nil {
		if apperr.IsPermission(errLogin) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errLogin.Error()})
			return
		}
		renderError(c, errLogin)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"email":     user.Email,
			"full_name": user.FullName,
		},
	})
}
