package api

import (
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/config"
	"github.com/kartoza/stunting-risk/internal/history"
)

// Handler provides HTTP API endpoints
type Handler struct {
	cfg     config.Config
	history *history.Store
	logger  *zap.Logger

	mu    sync.RWMutex
	model *Model
}

// NewHandler creates a new API handler. m and store may be nil: without a
// model classification answers 503, without a store nothing is recorded.
func NewHandler(m *Model, store *history.Store, cfg config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		history: store,
		logger:  logger,
		model:   m,
	}
}

// Model returns the model currently serving requests, or nil
func (h *Handler) Model() *Model {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model
}

// acquire returns the current model marked as in use, or nil. Callers
// release it when done so a replaced model is not closed under them.
func (h *Handler) acquire() *Model {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.model != nil {
		h.model.inflight.Add(1)
	}
	return h.model
}

// SetModel installs m and returns the model it replaced. Requests already
// holding the previous model finish with it; use Model.Retire to close it.
func (h *Handler) SetModel(m *Model) *Model {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.model
	h.model = m
	return prev
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Classification
	r.HandleFunc("/schema", h.handleSchema).Methods("GET")
	r.HandleFunc("/classify", h.handleClassify).Methods("POST")
	r.HandleFunc("/explain", h.handleExplain).Methods("POST")
	r.HandleFunc("/evaluation", h.handleEvaluation).Methods("GET")

	// Screening history
	r.HandleFunc("/classifications", h.handleListClassifications).Methods("GET")
	r.HandleFunc("/classifications/summary", h.handleSummary).Methods("GET")
	r.HandleFunc("/classifications/export.xlsx", h.handleExport).Methods("GET")
	r.HandleFunc("/classifications/{id}", h.handleGetClassification).Methods("GET")
}
