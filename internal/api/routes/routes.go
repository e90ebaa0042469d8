package routes

import (
	"medtrack/internal/api/handlers"
	"medtrack/internal/api/middleware"
	"medtrack/internal/config"
	"medtrack/internal/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	// Initialize services
	authService := services.NewAuthService(cfg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cfg)
	recordHandler := handlers.NewRecordHandler(cfg)
	userHandler := handlers.NewUserHandler(cfg)

	// Middleware
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ErrorHandler())

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "MedTrack API is running",
			})
		})

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
		}
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		// Auth routes (protected)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)

		// Medication record routes
		records := protected.Group("/records")
		{
			records.GET("", recordHandler.GetRecords)
			records.GET("/recent", recordHandler.GetRecentRecords)
			records.POST("", recordHandler.CreateRecord)
			records.PUT("/:id", recordHandler.UpdateRecord)
		}

		// Admin routes
		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/users", userHandler.GetUsers)
			admin.PUT("/users/:id", userHandler.UpdateUser)
			admin.GET("/records", recordHandler.GetAllRecords)
		}
	}
}
