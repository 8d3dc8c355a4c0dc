package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mop1016/expense-tracker-backend/internal/users"
)

// MFAHandler handles TOTP enrollment endpoints.
type MFAHandler struct {
	users *users.Service
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(usersService *users.Service) *MFAHandler {
	return &MFAHandler{users: usersService}
}

// Status reports whether TOTP is enabled for the current user.
func (h *MFAHandler) Status(c *gin.Context) {
	user, errGet := h.users.Get(c.Request.Context(), getUserID(c))
	if errGet != nil {
		renderError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": user.TOTPSecret != ""})
}

// PrepareTOTP generates a secret for the user to scan.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	secret, otpauthURL, errPrepare := h.users.PrepareTOTP(c.Request.Context(), getUserID(c))
	if errPrepare != nil {
		renderError(c, errPrepare)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "otpauth_url": otpauthURL})
}

// confirmTOTPRequest defines the request body for TOTP confirmation.
type confirmTOTPRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ConfirmTOTP verifies a code against the prepared secret and enables
// TOTP.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errConfirm := h.users.ConfirmTOTP(c.Request.Context(), getUserID(c), body.Secret, body.Code); errConfirm != nil {
		renderError(c, errConfirm)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// disableTOTPRequest defines the request body for disabling TOTP.
type disableTOTPRequest struct {
	Password string `json:"password"`
}

// DisableTOTP turns off TOTP after re-verifying the password.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errDisable := h.users.DisableTOTP(c.Request.Context(), getUserID(c), body.Password); errDisable != nil {
		renderError(c, errDisable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
