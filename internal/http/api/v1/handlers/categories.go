package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mop1016/expense-tracker-backend/internal/categories"
)

// CategoryHandler handles user and group category endpoints.
type CategoryHandler struct {
	categories *categories.Service
}

// NewCategoryHandler constructs a CategoryHandler.
func NewCategoryHandler(categoriesService *categories.Service) *CategoryHandler {
	return &CategoryHandler{categories: categoriesService}
}

// categoryRequest defines the request body for category creation.
type categoryRequest struct {
	Name string `json:"name"`
}

// ListUser returns the current user's categories.
func (h *CategoryHandler) ListUser(c *gin.Context) {
	rows, errList := h.categories.ListUserCategories(c.Request.Context(), getUserID(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": rows})
}

// CreateUser adds a custom category for the current user.
func (h *CategoryHandler) CreateUser(c *gin.Context) {
	var body categoryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errCreate := h.categories.CreateUserCategory(c.Request.Context(), getUserID(c), body.Name)
	if errCreate != nil {
		renderError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": row})
}

// DeleteUser removes a custom category.
func (h *CategoryHandler) DeleteUser(c *gin.Context) {
	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if errDelete := h.categories.DeleteUserCategory(c.Request.Context(), getUserID(c), categoryID); errDelete != nil {
		renderError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListGroup returns a group's categories.
func (h *CategoryHandler) ListGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rows, errList := h.categories.ListGroupCategories(c.Request.Context(), groupID, getUserID(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": rows})
}

// CreateGroup adds a category to a group.
func (h *CategoryHandler) CreateGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body categoryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errCreate := h.categories.CreateGroupCategory(c.Request.Context(), groupID, getUserID(c), body.Name)
	if errCreate != nil {
		renderError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": row})
}

// DeleteGroup removes a group category.
func (h *CategoryHandler) DeleteGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	categoryID, ok := parseIDParam(c, "categoryId")
	if !ok {
		return
	}
	if errDelete := h.categories.DeleteGroupCategory(c.Request.Context(), groupID, categoryID, getUserID(c)); errDelete != nil {
		renderError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
