// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ideate-ai/platform/internal/agent"
	"github.com/ideate-ai/platform/internal/bus"
	"github.com/ideate-ai/platform/internal/config"
	"github.com/ideate-ai/platform/internal/graph"
	"github.com/ideate-ai/platform/internal/handler"
	"github.com/ideate-ai/platform/internal/llm"
	"github.com/ideate-ai/platform/internal/middleware"
	"github.com/ideate-ai/platform/internal/model"
	"github.com/ideate-ai/platform/internal/store"
	"github.com/ideate-ai/platform/pkg/logger"
	"github.com/ideate-ai/platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", "version", cfg.Version)

	// Initialize tracing if enabled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "ideate-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", "error", err)
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to the broadcast bus
	busClient, err := bus.Connect(bus.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()

	broadcaster := bus.NewBroadcaster(busClient)

	// Open the flat-file store
	fileStore, err := store.NewFlatFileStore(cfg.DataDir)
	if err != nil {
		log.Error("failed to open data dir", "error", err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	// Rebroadcast out-of-band file edits to connected clients
	if cfg.WatchDataDir {
		go func() {
			err := store.Watch(ctx, fileStore.Dir(), log, func(action model.ResourceAction, resource, id string) {
				thing, err := fileStore.GetThing(ctx, id)
				workspaceID := ""
				if err == nil {
					workspaceID = thing.WorkspaceID
				}
				pubErr := broadcaster.PublishResource(&model.ResourceEvent{
					Type:        action,
					Resource:    resource,
					ID:          id,
					WorkspaceID: workspaceID,
					At:          time.Now(),
				})
				if pubErr != nil {
					log.Warn("failed to rebroadcast file change", "error", pubErr, "resource_id", id)
				}
			})
			if err != nil && ctx.Err() == nil {
				log.Error("data dir watcher stopped", "error", err)
			}
		}()
	}

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, agent features disabled", "error", err)
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, agent features disabled", "error", err)
		}
	}

	// Initialize services
	thingSvc := graph.NewService(fileStore, broadcaster, log)
	sessionMgr := agent.NewManager()
	runner := agent.NewRunner(sessionMgr, llmClient, broadcaster, agent.Config{
		DefaultModel:    cfg.DefaultModel,
		MaxTokens:       cfg.MaxResponseTokens,
		RequireApproval: cfg.RequireApproval,
		ApprovalTimeout: cfg.ApprovalTimeout,
	}, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(busClient, cfg.Version)
	thingHandler := handler.NewThingHandler(thingSvc, log)
	agentHandler := handler.NewAgentHandler(sessionMgr, runner, log)
	wsHandler := handler.NewWorkspaceHandler(broadcaster, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/api/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Agent stream and its out-of-band response endpoints
		r.Route("/agent", func(r chi.Router) {
			r.Get("/stream", agentHandler.Stream)
			r.Post("/permission-response", agentHandler.PermissionResponse)
			r.Post("/question-response", agentHandler.QuestionResponse)
			r.Post("/mode", agentHandler.Mode)
		})

		// Things
		r.Route("/things", func(r chi.Router) {
			r.Post("/", thingHandler.Create)
			r.Get("/", thingHandler.List)
			r.Get("/tree", thingHandler.Tree)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", thingHandler.Get)
				r.Patch("/", thingHandler.Update)
				r.Delete("/", thingHandler.Delete)

				r.Get("/document", thingHandler.GetDocument)
				r.Put("/document", thingHandler.PutDocument)

				r.Post("/links", thingHandler.AddLink)
				r.Post("/attachments", thingHandler.AddAttachment)
			})
		})

		// Workspace and run websocket channels
		r.Route("/ws", func(r chi.Router) {
			r.Get("/workspace", wsHandler.Workspace)
			r.Get("/run", wsHandler.Run)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
