package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/estaciona/parkops-server/internal/analytics"
	"github.com/estaciona/parkops-server/internal/api"
	"github.com/estaciona/parkops-server/internal/apperr"
	"github.com/estaciona/parkops-server/internal/auth"
	"github.com/estaciona/parkops-server/internal/config"
	"github.com/estaciona/parkops-server/internal/ledger"
	"github.com/estaciona/parkops-server/internal/store"
	"github.com/estaciona/parkops-server/internal/utils"
	"github.com/estaciona/parkops-server/pkg/ws"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	logger := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	// Set up the persistence substrate
	kv, err := setupStore(cfg)
	if err != nil {
		logger.Fatal("failed to set up store", zap.Error(err))
	}
	logger.Info("store ready", zap.String("backend", cfg.Store.Backend))

	ctx := context.Background()

	// Create services
	authSvc := auth.NewManager(kv, cfg.Auth.JWTSecret, logger)
	if err := authSvc.Bootstrap(ctx); err != nil {
		logger.Fatal("failed to bootstrap session manager", zap.Error(err))
	}

	ledgerSvc := ledger.NewService(kv, logger)
	if err := ledgerSvc.Bootstrap(ctx); err != nil {
		logger.Fatal("failed to bootstrap ledger", zap.Error(err))
	}

	// Live event feed
	hub := ws.NewHub(logger)
	hub.SetInitDataProvider(func() interface{} {
		snap := ledgerSvc.Snapshot()
		return gin.H{
			"spots": snap.Spots,
			"stats": analytics.ComputeStats(snap),
		}
	})
	go hub.Run()
	ledgerSvc.SetEventPublisher(hub)

	// Create API handler
	handler := api.NewHandler(authSvc, ledgerSvc, apperr.NewHandler(logger), hub)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting server", zap.String("addr", serverAddr))
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// setupStore selects the configured key-value backend.
func setupStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := config.SetupRedis(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client), nil
	case config.BackendPostgres:
		db, err := config.SetupDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
