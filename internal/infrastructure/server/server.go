// Package server assembles the platform: storage mounts, policy
// engine, audit ledger, kernel, gateway, and the HTTP surface. Nothing
// serves until the governance gate has passed: a missing freeze
// marker or a broken hash chain is fatal here, not a warning.
package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/gemimi2525-star/super-platform-sub003/internal/api/http"
	"github.com/gemimi2525-star/super-platform-sub003/internal/api/middleware"
	"github.com/gemimi2525-star/super-platform-sub003/internal/api/ws"
	"github.com/gemimi2525-star/super-platform-sub003/internal/audit"
	"github.com/gemimi2525-star/super-platform-sub003/internal/gateway"
	"github.com/gemimi2525-star/super-platform-sub003/internal/governance"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/config"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/logging"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/monitoring"
	"github.com/gemimi2525-star/super-platform-sub003/internal/infrastructure/tracing"
	"github.com/gemimi2525-star/super-platform-sub003/internal/kernel"
	"github.com/gemimi2525-star/super-platform-sub003/internal/policy"
	"github.com/gemimi2525-star/super-platform-sub003/internal/shared/hashing"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs/bundlefs"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs/diskfs"
	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs/memfs"
)

// Server wraps the HTTP server and its wired components.
type Server struct {
	http    *nethttp.Server
	router  *gin.Engine
	kernel  *kernel.Kernel
	gateway *gateway.Gateway
	ledger  *audit.Ledger
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer wires a server from configuration. It returns an error,
// and the caller must halt, when a mount cannot be prepared or the
// governance gate rejects the deployment.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	logger.Info("Initializing kernel service",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("governance_root", cfg.Governance.Root),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("kernel-vfs", logger.Logger)

	// Storage mounts. The user scheme is durable on disk, temp is
	// memory only, system is the read-only bundle.
	user, err := diskfs.New(vfs.SchemeUser, cfg.Storage.UserRoot)
	if err != nil {
		return nil, fmt.Errorf("user mount: %w", err)
	}
	temp := memfs.New(vfs.SchemeTemp)

	assets := bundlefs.DefaultAssets()
	if cfg.Storage.SystemManifest != "" {
		assets, err = bundlefs.FromManifest(cfg.Storage.SystemManifest)
		if err != nil {
			return nil, fmt.Errorf("system manifest: %w", err)
		}
	}
	system, err := bundlefs.New(assets)
	if err != nil {
		return nil, fmt.Errorf("system mount: %w", err)
	}

	// Audit ledger. An unreadable store is not fatal here by itself;
	// the governance gate below decides, and reports it as a
	// LedgerInitFailed verdict rather than a raw I/O error.
	hasher, err := hashing.New(hashing.Algorithm(cfg.Audit.HashAlgorithm))
	if err != nil {
		return nil, fmt.Errorf("audit hash: %w", err)
	}

	var ledger *audit.Ledger
	store, openErr := audit.OpenFileStore(cfg.Audit.Path)
	if openErr == nil {
		ledger, openErr = audit.Open(store, hasher)
	}

	verdict := governance.Check(cfg.Governance.Root, ledger, openErr)
	if !verdict.OK {
		logger.Error("Governance gate rejected boot",
			zap.Bool("kernel_frozen", verdict.KernelFrozen),
			zap.Bool("hash_valid", verdict.HashValid),
			zap.String("error_code", string(verdict.Code)),
		)
		return nil, fmt.Errorf("governance check failed: %s", verdict.Code)
	}
	logger.Info("Governance gate passed",
		zap.Int("ledger_entries", verdict.TotalEntries))

	k := kernel.New(user, temp, system)
	engine := policy.NewEngine(cfg.Policy.QuotaBytes)
	gw := gateway.New(k, engine, ledger, logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(gw, k, ledger, cfg.Governance.Root, user, logger)
	handlers.Register(router)

	wsHandler := ws.NewHandler(ledger, logger, metrics)
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	return &Server{
		http:    &nethttp.Server{Addr: addr, Handler: router},
		router:  router,
		kernel:  k,
		gateway: gw,
		ledger:  ledger,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server and blocks until it closes.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, closes the ledger store, and
// syncs the logger. The ctx bounds how long draining may take.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var firstErr error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
		firstErr = err
	}
	if err := s.ledger.Close(); err != nil {
		s.logger.Error("Ledger close failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	s.logger.Sync()
	return firstErr
}
