// Package v1 wires the HTTP API surface.
package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/categories"
	"github.com/mop1016/expense-tracker-backend/internal/config"
	"github.com/mop1016/expense-tracker-backend/internal/einvoice"
	"github.com/mop1016/expense-tracker-backend/internal/groups"
	"github.com/mop1016/expense-tracker-backend/internal/http/api/v1/handlers"
	"github.com/mop1016/expense-tracker-backend/internal/models"
	"github.com/mop1016/expense-tracker-backend/internal/security"
	"github.com/mop1016/expense-tracker-backend/internal/stats"
	"github.com/mop1016/expense-tracker-backend/internal/transactions"
	"github.com/mop1016/expense-tracker-backend/internal/users"
)

// RegisterRoutes registers public and authenticated API routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, statsService *stats.Service, einvoiceClient *einvoice.Client) {
	if r == nil || db == nil {
		return
	}

	categoriesService := categories.NewService(db)
	usersService := users.NewService(db, categoriesService, cfg.JWT.Secret, cfg.JWT.Expiry())
	groupsService := groups.NewService(db)
	transactionsService := transactions.NewService(db)
	einvoiceService := einvoice.NewService(db, einvoiceClient)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(usersService)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(userAuthMiddleware(db, cfg.JWT))

	profileHandler := handlers.NewProfileHandler(usersService)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.PUT("/profile/password", profileHandler.ChangePassword)
	authed.GET("/users/search", profileHandler.Search)

	mfaHandler := handlers.NewMFAHandler(usersService)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	groupHandler := handlers.NewGroupHandler(db, groupsService)
	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups", groupHandler.List)
	authed.GET("/groups/:id", groupHandler.Get)
	authed.DELETE("/groups/:id", groupHandler.Delete)
	authed.GET("/groups/:id/members", groupHandler.Members)
	authed.DELETE("/groups/:id/members/:userId", groupHandler.RemoveMember)
	authed.POST("/groups/:id/leave", groupHandler.Leave)
	authed.POST("/groups/:id/invitations", groupHandler.Invite)
	authed.GET("/invitations", groupHandler.Invitations)
	authed.POST("/invitations/:id/respond", groupHandler.Respond)

	categoryHandler := handlers.NewCategoryHandler(categoriesService)
	authed.GET("/categories", categoryHandler.ListUser)
	authed.POST("/categories", categoryHandler.CreateUser)
	authed.DELETE("/categories/:id", categoryHandler.DeleteUser)
	authed.GET("/groups/:id/categories", categoryHandler.ListGroup)
	authed.POST("/groups/:id/categories", categoryHandler.CreateGroup)
	authed.DELETE("/groups/:id/categories/:categoryId", categoryHandler.DeleteGroup)

	transactionHandler := handlers.NewTransactionHandler(transactionsService)
	authed.POST("/transactions", transactionHandler.Create)
	authed.GET("/transactions", transactionHandler.List)
	authed.GET("/transactions/:id", transactionHandler.Get)
	authed.PUT("/transactions/:id", transactionHandler.Update)
	authed.DELETE("/transactions/:id", transactionHandler.Delete)
	authed.GET("/groups/:id/transactions", transactionHandler.ListGroup)

	statsHandler := handlers.NewStatsHandler(db, statsService)
	authed.GET("/statistics", statsHandler.User)
	authed.GET("/groups/:id/statistics", statsHandler.Group)

	einvoiceHandler := handlers.NewEInvoiceHandler(einvoiceService)
	authed.POST("/einvoice/carriers", einvoiceHandler.AddCarrier)
	authed.GET("/einvoice/carriers", einvoiceHandler.ListCarriers)
	authed.DELETE("/einvoice/carriers/:id", einvoiceHandler.DeleteCarrier)
	authed.POST("/einvoice/carriers/:id/sync", einvoiceHandler.SyncCarrier)
	authed.GET("/einvoice/invoices", einvoiceHandler.ListInvoices)
	authed.POST("/einvoice/invoices/:id/import", einvoiceHandler.ImportInvoice)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
