package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ai-chat-a2a/backend/api/handlers"
	"github.com/ai-chat-a2a/backend/internal/a2a"
	"github.com/ai-chat-a2a/backend/internal/agent"
	"github.com/ai-chat-a2a/backend/internal/chat"
	"github.com/ai-chat-a2a/backend/internal/config"
	"github.com/ai-chat-a2a/backend/internal/db"
	"github.com/ai-chat-a2a/backend/internal/repository"
	"github.com/ai-chat-a2a/backend/internal/ws"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create database directory")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close()

	sessionRepo := repository.NewSessionRepository(database)
	messageRepo := repository.NewMessageRepository(database)
	agentRepo := repository.NewAgentRepository(database)

	index := ws.NewSessionIndex()
	registry := ws.NewRegistry(index, logger)

	agentClient := agent.NewClient(cfg.AgentTimeout, logger)
	chatService := chat.NewService(sessionRepo, messageRepo, agentRepo, registry, agentClient, logger)
	wsHandler := ws.NewHandler(registry, chatService, logger)

	if len(cfg.AllowedOrigins) > 0 {
		ws.SetCheckOrigin(originChecker(cfg.AllowedOrigins))
	}

	sessionHandler := handlers.NewSessionHandler(sessionRepo, messageRepo, chatService)
	agentHandler := handlers.NewAgentHandler(agentRepo, agentClient)
	attachHandler := handlers.NewWebSocketHandler(sessionRepo, wsHandler)
	a2aHandler := handlers.NewA2AHandler(a2a.Identity{ID: cfg.A2AAgentID, Name: cfg.A2AAgentName}, sessionRepo, chatService)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "ai-chat-backend", "status": "running"})
	})
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		sessionHandler.RegisterRoutes(api)
		agentHandler.RegisterRoutes(api)
		attachHandler.RegisterRoutes(api)
		a2aHandler.RegisterRoutes(api)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Liveness sweep: reclaim connections idle past the threshold.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if reclaimed := registry.Sweep(cfg.IdleTimeout); reclaimed > 0 {
					logger.Info().Int("reclaimed", reclaimed).Msg("liveness sweep")
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	registry.Close()
}

// originChecker builds a WebSocket origin checker over an allowlist.
// Requests without an Origin header (non-browser clients) are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		return false
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
