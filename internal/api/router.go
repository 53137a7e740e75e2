package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/handlers"
	"github.com/opsdesk/opsdesk/internal/middleware"
	"github.com/opsdesk/opsdesk/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
// Everything except login, health and metrics requires an authenticated
// staff account.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Public endpoints
	r.GET("/health", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt, users))
	api.GET("/auth/me", authHandler.Me)

	staff := api.Group("")
	staff.Use(middleware.RequireStaff())

	signalHandler, err := handlers.NewSignalHandler(db)
	if err != nil {
		return nil, err
	}
	taskHandler, err := handlers.NewTaskHandler(db)
	if err != nil {
		return nil, err
	}
	personHandler, err := handlers.NewPersonHandler(db)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(db)
	if err != nil {
		return nil, err
	}
	activityHandler, err := handlers.NewActivityHandler(db)
	if err != nil {
		return nil, err
	}
	statusHandler, err := handlers.NewStatusHandler(db)
	if err != nil {
		return nil, err
	}
	typeHandler, err := handlers.NewTypeHandler(db)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(db)
	if err != nil {
		return nil, err
	}

	registerSignalRoutes(staff, signalHandler)
	registerTaskRoutes(staff, taskHandler)
	registerPersonRoutes(staff, personHandler)
	registerNotificationRoutes(staff, notificationHandler)
	registerActivityRoutes(staff, activityHandler)
	registerStatusRoutes(staff, statusHandler)
	registerTypeRoutes(staff, typeHandler)
	registerUserRoutes(staff, userHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
