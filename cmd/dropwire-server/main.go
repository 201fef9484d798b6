package main

import (
	"log"

	"github.com/dropwire/dropwire/pkg/dropwire/access"
	"github.com/dropwire/dropwire/pkg/dropwire/admin"
	"github.com/dropwire/dropwire/pkg/dropwire/auth"
	"github.com/dropwire/dropwire/pkg/dropwire/config"
	"github.com/dropwire/dropwire/pkg/dropwire/connections"
	"github.com/dropwire/dropwire/pkg/dropwire/database"
	"github.com/dropwire/dropwire/pkg/dropwire/drops"
	"github.com/dropwire/dropwire/pkg/dropwire/groups"
	"github.com/dropwire/dropwire/pkg/dropwire/invites"
	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"github.com/dropwire/dropwire/pkg/dropwire/sharelinks"
	"github.com/dropwire/dropwire/pkg/dropwire/takeout"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dropwire/dropwire/api/swagger"
)

// @title Dropwire API
// @version 1.0
// @description Group-scoped drop sharing with connection-driven visibility.

// @contact.name Dropwire Support
// @contact.url https://github.com/dropwire/dropwire

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	// Load configuration from environment (and .env if present)
	cfg := config.Load()

	// Connect to database (runs auto-migrations)
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Create default admin user if no admin exists
	if err := ensureAdminExists(cfg); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	// Propagation engine shared by all handlers
	svc := access.NewService(database.GetDB())
	svc.PropagateOnConnect = cfg.PropagateOnConnect
	if svc.PropagateOnConnect {
		log.Println("Invite acceptance will sync both reserved groups (DROPWIRE_PROPAGATE_ON_CONNECT=true)")
	}

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Share link handler serves both /api/share and the public landing page
	shareHandler := sharelinks.NewHandler(database.GetDB(), svc, cfg.BaseURL)

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "dropwire",
			})
		})

		// Auth routes (public, except /auth/me)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api)

		// Connection routes
		connectionsHandler := connections.NewHandler(database.GetDB(), svc)
		connectionsHandler.RegisterRoutes(api)

		// Invitation routes
		invitesHandler := invites.NewHandler(database.GetDB(), svc)
		invitesHandler.RegisterRoutes(api)

		// Group and viewer routes
		groupsHandler := groups.NewHandler(database.GetDB(), svc)
		groupsHandler.RegisterRoutes(api)

		// Drop and tag routes
		dropsHandler := drops.NewHandler(database.GetDB(), svc)
		dropsHandler.RegisterRoutes(api)

		// Share link routes
		shareHandler.RegisterRoutes(api)

		// Takeout routes
		takeoutHandler := takeout.NewHandler(database.GetDB(), svc)
		takeoutHandler.RegisterRoutes(api)

		// Admin routes (JWT only, admin role required)
		adminHandler := admin.NewHandler(database.GetDB(), svc)
		adminHandler.RegisterRoutes(api)
	}

	// Share link landing page (public, must be registered LAST to avoid conflicts)
	shareHandler.RegisterLandingRoutes(r)

	log.Printf("Starting Dropwire server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin user if no admin exists in the database.
// Credentials come from DROPWIRE_ADMIN_EMAIL / DROPWIRE_ADMIN_PASSWORD.
func ensureAdminExists(cfg *config.Config) error {
	db := database.GetDB()

	// Check if any admin user exists
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	// Create default admin user
	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: %s", cfg.AdminEmail)
	return nil
}
