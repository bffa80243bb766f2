// Package server assembles the HTTP API from services, handlers and middleware.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"budgetapi/internal/handlers"
	"budgetapi/internal/ledger"
	"budgetapi/internal/middleware"
	"budgetapi/internal/notify"
	"budgetapi/internal/scheduler"
	"budgetapi/internal/services"
)

// Deps holds what the API needs from main.
type Deps struct {
	DB         *gorm.DB
	Tokens     *middleware.TokenManager
	Dispatcher notify.Dispatcher
	// Locks must be shared with any Sweeper running against the same database.
	Locks *ledger.UserLocks
	// Sweeper backs POST /internal/sweep. When nil one is built from DB.
	Sweeper        handlers.Sweeper
	InternalAPIKey string
	// Location defines "today" for planned dates and period filters.
	Location *time.Location
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Locks == nil {
		d.Locks = ledger.NewUserLocks()
	}
	if d.Dispatcher == nil {
		d.Dispatcher = notify.NewRouter(d.DB, nil)
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	// Services
	userService := services.NewUserService(d.DB)
	categoryService := services.NewCategoryService(d.DB)
	transactionService := services.NewTransactionService(d.DB, categoryService, d.Dispatcher, d.Locks,
		services.WithClock(now), services.WithLocation(d.Location))
	notificationService := services.NewNotificationService(d.DB)
	adminService := services.NewAdminService(d.DB, userService, d.Dispatcher)

	sweeper := d.Sweeper
	if sweeper == nil {
		sweeper = scheduler.NewSweeper(d.DB, d.Dispatcher, d.Locks,
			scheduler.WithClock(now), scheduler.WithLocation(d.Location))
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, d.Tokens)
	profileHandler := handlers.NewProfileHandler(userService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	adminHandler := handlers.NewAdminHandler(adminService)
	sweepHandler := handlers.NewSweepHandler(sweeper)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/sign-up", authHandler.SignUp)
	auth.POST("/token", authHandler.Token)

	// Scheduler trigger
	internal := v1.Group("/internal")
	internal.Use(middleware.APIKeyMiddleware(d.InternalAPIKey))
	internal.POST("/sweep", sweepHandler.Sweep)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(d.Tokens))

	protected.GET("/profile", profileHandler.GetProfile)
	protected.PUT("/profile/settings", profileHandler.UpdateSettings)
	protected.DELETE("/profile", profileHandler.DeleteProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PATCH("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	protected.GET("/notifications", notificationHandler.ListNotifications)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminOnly(userService.GetUserByID))
	admin.GET("/panel", adminHandler.Panel)
	admin.POST("/broadcast", adminHandler.Broadcast)
	admin.DELETE("/entities/:kind/:id", adminHandler.DeleteEntity)

	return router
}
