package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/models"
	"github.com/mop1016/expense-tracker-backend/internal/stats"
)

// StatsHandler handles dashboard statistics endpoints.
type StatsHandler struct {
	db    *gorm.DB
	stats *stats.Service
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *gorm.DB, statsService *stats.Service) *StatsHandler {
	return &StatsHandler{db: db, stats: statsService}
}

// User returns the current user's statistics.
func (h *StatsHandler) User(c *gin.Context) {
	months, _ := strconv.Atoi(c.Query("months"))
	result := h.stats.UserStatistics(c.Request.Context(), getUserID(c), months)
	c.JSON(http.StatusOK, result)
}

// Group returns a group's statistics. Only active members may view
// them.
func (h *StatsHandler) Group(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, getUserID(c), models.MemberActive).
		Count(&count).Error; errCount != nil || count == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this group"})
		return
	}

	months, _ := strconv.Atoi(c.Query("months"))
	result := h.stats.GroupStatistics(c.Request.Context(), groupID, months)
	c.JSON(http.StatusOK, result)
}
