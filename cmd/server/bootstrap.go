package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/api"
	"github.com/opsdesk/opsdesk/internal/app"
	iauth "github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/logger"
)

// runtimeStack bundles long-lived resources used by the HTTP server.
type runtimeStack struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// bootstrapRuntime initialises the database, services and HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return nil, errors.New("auth.jwt.secret must be configured")
	}

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack := &runtimeStack{DB: db}
	success := false
	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	if err := ensureAdminAccount(ctx, db, cfg, log); err != nil {
		return nil, err
	}

	stack.Router, err = api.NewRouter(db, jwtService)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseConfig()

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", dbCfg.Driver),
	)

	return db, nil
}

// ensureAdminAccount creates the bootstrap staff account when a password is
// configured and the account does not exist yet.
func ensureAdminAccount(ctx context.Context, db *gorm.DB, cfg *app.Config, log *zap.Logger) error {
	password := strings.TrimSpace(cfg.Admin.Password)
	if password == "" {
		return nil
	}

	users, err := services.NewUserService(db)
	if err != nil {
		return err
	}

	admin, err := users.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, password)
	if err != nil {
		return fmt.Errorf("ensure admin account: %w", err)
	}

	log.Info("admin account ready", zap.String("username", admin.Username))
	return nil
}

// Shutdown releases the stack's resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil || s.DB == nil {
		return
	}

	sqlDB, err := s.DB.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
