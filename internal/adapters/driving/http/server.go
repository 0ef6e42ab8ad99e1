package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	authService       driving.AuthService
	pairingService    driving.PairingService
	mergeService      driving.MergeService
	historyService    driving.HistoryService
	undoService       driving.UndoService
	ingestService     driving.IngestService
	credentialService driving.CredentialService

	// Infrastructure
	taskQueue   driven.TaskQueue
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	pairingService driving.PairingService,
	mergeService driving.MergeService,
	historyService driving.HistoryService,
	undoService driving.UndoService,
	ingestService driving.IngestService,
	credentialService driving.CredentialService,
	taskQueue driven.TaskQueue,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		authService:       authService,
		pairingService:    pairingService,
		mergeService:      mergeService,
		historyService:    historyService,
		undoService:       undoService,
		ingestService:     ingestService,
		credentialService: credentialService,
		taskQueue:         taskQueue,
		db:                db,
		redisClient:       redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Token exchange (public; the API key secret is the credential)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)

	// Pair endpoints
	s.router.Handle("GET /api/v1/pairs",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListPairs)))
	s.router.Handle("POST /api/v1/pairs/scan",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleScanPairs)))
	s.router.Handle("POST /api/v1/pairs/{id}/ignore",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIgnorePair)))

	// Merge endpoints
	s.router.Handle("GET /api/v1/merges",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListMerges)))
	s.router.Handle("POST /api/v1/merges",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleMerge)))
	s.router.Handle("POST /api/v1/merges/preview",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleMergePreview)))
	s.router.Handle("POST /api/v1/merges/{id}/undo",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUndoMerge)))
	s.router.Handle("GET /api/v1/merges/consistency",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCheckConsistency)))

	// Lineage endpoint
	s.router.Handle("GET /api/v1/documents/{id}/lineage",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetLineage)))

	// Ingest endpoint
	s.router.Handle("POST /api/v1/ingest",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIngest)))

	// Task status endpoint
	s.router.Handle("GET /api/v1/tasks/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetTask)))

	// Credential endpoints
	s.router.Handle("GET /api/v1/credentials",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetCredentials)))
	s.router.Handle("PUT /api/v1/credentials",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSaveCredentials)))
	s.router.Handle("POST /api/v1/credentials/test",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleTestCredentials)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
