// Package app boots the service: database, settings, owner bootstrap, HTTP
// engine, and the background reconciler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tiker-app/tiker/internal/config"
	"github.com/tiker-app/tiker/internal/db"
	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/http/api"
	"github.com/tiker-app/tiker/internal/models"
	"github.com/tiker-app/tiker/internal/ratelimit"
	"github.com/tiker-app/tiker/internal/reconcile"
	"github.com/tiker-app/tiker/internal/security"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
	"github.com/tiker-app/tiker/internal/writegate"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server and blocks until the context is canceled
// or the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.Refresh(conn); errRefresh != nil {
		return errRefresh
	}

	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if jwtCfg.Secret == "" {
		return fmt.Errorf("jwt secret not configured (set %s or jwt.secret)", config.EnvJWTSecret)
	}

	ownerCfg, errOwner := config.LoadOwnerConfig(configPath)
	if errOwner != nil {
		return errOwner
	}
	if errBootstrap := EnsureOwnerAccount(conn, ownerCfg); errBootstrap != nil {
		return errBootstrap
	}

	service := economy.NewService(conn, nil, nil)
	limiter := ratelimit.NewManager(nil, nil, nil)
	gate := writegate.New(conn, limiter, jwtCfg.Secret, nil)

	reconciler := reconcile.New(service, nil)
	reconciler.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogMiddleware())

	api.RegisterRoutes(engine, api.Deps{
		DB:            conn,
		Service:       service,
		Gate:          gate,
		JWT:           jwtCfg,
		WebhookSecret: config.LoadWebhookSecret(configPath),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", port).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// EnsureOwnerAccount creates the bootstrap owner on first run. Nothing
// happens when an owner exists or the config omits owner credentials.
func EnsureOwnerAccount(conn *gorm.DB, ownerCfg config.OwnerConfig) error {
	if ownerCfg.Username == "" || ownerCfg.Password == "" {
		return nil
	}
	var count int64
	if errCount := conn.Model(&models.Account{}).
		Where("role = ?", models.RoleOwner).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("app: count owner accounts: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	hashed, errHash := security.HashPassword(ownerCfg.Password)
	if errHash != nil {
		return fmt.Errorf("app: hash owner password: %w", errHash)
	}
	owner := &models.Account{
		Username: ownerCfg.Username,
		Email:    ownerCfg.Email,
		Password: hashed,
		Tier:     models.AccountTierGold,
		Role:     models.RoleOwner,
	}
	if errCreate := conn.Create(owner).Error; errCreate != nil {
		return fmt.Errorf("app: create owner account: %w", errCreate)
	}
	log.WithField("username", owner.Username).Info("owner account created")
	return nil
}

// requestLogMiddleware logs each request with latency and status.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(started).Round(time.Microsecond),
		}).Debug("request")
	}
}
