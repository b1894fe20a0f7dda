package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/api"
	"github.com/kartoza/stunting-risk/internal/config"
	"github.com/kartoza/stunting-risk/internal/history"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg          config.Config
	logger       *zap.Logger
	httpServer   *http.Server
	router       *mux.Router
	handler      http.Handler
	api          *api.Handler
	historyStore *history.Store

	// serializes model pack installs
	installMu sync.Mutex
}

// New creates a new Server. m may be nil, in which case the server starts
// in setup mode until a model pack is installed.
func New(cfg config.Config, m *api.Model, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: mux.NewRouter(),
	}

	if cfg.History.Enabled {
		path, err := historyPath(cfg)
		if err != nil {
			logger.Warn("screening history not available", zap.Error(err))
		} else if store, err := history.Open(path, cfg.History.CacheSize); err != nil {
			logger.Warn("screening history not available", zap.String("path", path), zap.Error(err))
		} else {
			logger.Info("screening history enabled", zap.String("path", path))
			s.historyStore = store
		}
	}

	s.api = api.NewHandler(m, s.historyStore, cfg, logger)

	if err := s.setupRoutes(); err != nil {
		if s.historyStore != nil {
			s.historyStore.Close()
		}
		return nil, err
	}

	s.handler = Chain(
		RequestLogger(logger),
		Recovery(logger),
		SecurityHeaders,
		RequestSize(maxRequestBody),
	)(s.router)

	return s, nil
}

// historyPath resolves the screening database location
func historyPath(cfg config.Config) (string, error) {
	if cfg.History.Path != "" {
		return cfg.History.Path, nil
	}
	if cfg.DataDir != "" {
		return filepath.Join(cfg.DataDir, "history.db"), nil
	}
	storeDir, err := config.DataStoreDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(storeDir, "history.db"), nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	s.api.RegisterRoutes(apiRouter)

	// Model pack management routes
	apiRouter.HandleFunc("/modelpack/status", s.handleModelPackStatus).Methods("GET")
	apiRouter.HandleFunc("/modelpack/install", s.handleModelPackInstall).Methods("POST")

	// Evaluation images of the active pack
	s.router.PathPrefix("/assets/").Handler(
		http.StripPrefix("/assets/", http.HandlerFunc(s.handleAsset)))

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("could not load embedded static files: %w", err)
	}

	// SPA fallback: serve index.html for any non-API route
	fileServer := http.FileServer(http.FS(staticContent))
	s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
	return nil
}

// handleAsset serves files from the assets directory of the active pack
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	m := s.api.Model()
	if m == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.FileServer(http.Dir(m.AssetsDir())).ServeHTTP(w, r)
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server and releases the model and history
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if m := s.api.SetModel(nil); m != nil {
		m.Retire()
	}
	if s.historyStore != nil {
		s.historyStore.Close()
	}
	return err
}

// spaHandler serves the SPA, falling back to index.html for client-side routing
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	if _, err := fs.Stat(h.staticContent, cleanPath); err != nil {
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}
