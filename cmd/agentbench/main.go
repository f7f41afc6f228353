// Package main is the entry point for the agentbench server.
// One binary hosts the WebSocket gateway, the tool-execution API and the
// dev-server preview proxy with shared infrastructure.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/commandreg"
	"github.com/agentbench/agentbench/internal/common/config"
	"github.com/agentbench/agentbench/internal/common/httpmw"
	"github.com/agentbench/agentbench/internal/common/logger"
	"github.com/agentbench/agentbench/internal/common/tracing"
	"github.com/agentbench/agentbench/internal/events/bus"
	gateway "github.com/agentbench/agentbench/internal/gateway/websocket"
	"github.com/agentbench/agentbench/internal/preview"
	"github.com/agentbench/agentbench/internal/run"
	"github.com/agentbench/agentbench/internal/tools"
	"github.com/agentbench/agentbench/internal/workspace"
	ws "github.com/agentbench/agentbench/pkg/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting agentbench...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Initialize event bus (in-memory by default, NATS if configured)
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		log.Info("Connecting to NATS...", zap.String("url", cfg.NATS.URL))
		natsEventBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsEventBus
		defer natsEventBus.Close()
		log.Info("Connected to NATS event bus")
	} else {
		log.Info("Using in-memory event bus")
		memBus := bus.NewMemoryEventBus(log)
		eventBus = memBus
		defer memBus.Close()
	}

	// 5. Workspace store and path resolver
	store, err := workspace.NewSQLiteStore(cfg.Workspace.DBPath)
	if err != nil {
		log.Fatal("Failed to initialize workspace store",
			zap.Error(err), zap.String("db_path", cfg.Workspace.DBPath))
	}
	defer store.Close()
	log.Info("Workspace store initialized", zap.String("db_path", cfg.Workspace.DBPath))

	resolver := workspace.NewResolver(store)

	sweeper := workspace.NewSweeper(store, cfg.Workspace.RetentionAgeDuration(), time.Hour, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 6. Shared registries
	commands := commandreg.NewRegistry(log)
	lastEdits := tools.NewLastEditStore()
	previewMgr := preview.NewManager(eventBus, log)

	// 7. Tool router and HTTP boundary
	toolRouter := tools.NewRouter(resolver, lastEdits, tools.StreamMode(cfg.Agent.StreamMode), log)
	toolsHandler := tools.NewHandler(toolRouter, commands, log)

	// 8. Preview proxy and dev-server launcher
	proxyHandler := preview.NewProxyHandler(previewMgr, log)
	launcher := preview.NewLauncher(previewMgr, resolver, cfg.Preview.Host, log)
	previewHandler := preview.NewHandler(launcher, log)
	defer launcher.StopAll()

	// 9. WebSocket gateway
	dispatcher := ws.NewDispatcher()
	gateway.RegisterHealthHandler(dispatcher)

	hub := gateway.NewHub(dispatcher, log)
	go hub.Run(ctx)
	if err := hub.BridgeBus(eventBus); err != nil {
		log.Fatal("Failed to bridge event bus to gateway", zap.Error(err))
	}

	// Each connection gets its own run manager, so one agent run may be
	// active per client.
	newRunMgr := func() *run.Manager {
		return run.NewManager(cfg.Agent, toolRouter, resolver, commands, eventBus, log)
	}
	wsHandler := gateway.NewHandler(hub, newRunMgr, commands, log)

	// 10. HTTP server (WebSocket + HTTP endpoints)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(httpmw.RequestLogger(log, "agentbench"))
	router.Use(httpmw.OtelTracing("agentbench"))

	router.GET("/ws", wsHandler.HandleConnection)

	api := router.Group("/api")
	toolsHandler.RegisterRoutes(api)
	proxyHandler.RegisterRoutes(api)
	previewHandler.RegisterRoutes(api)
	workspace.NewHandler(store, eventBus, log).RegisterRoutes(api)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "agentbench",
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("Server listening",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("API configured",
		zap.String("websocket", "/ws"),
		zap.String("http", "/api"),
		zap.String("health", "/health"),
	)

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down agentbench...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("agentbench stopped")
}

// corsMiddleware returns a CORS middleware for HTTP and WebSocket connections
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version, Sec-WebSocket-Protocol")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
