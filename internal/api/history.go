package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/history"
	"github.com/kartoza/stunting-risk/internal/httputil"
	"github.com/kartoza/stunting-risk/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// handleListClassifications returns recorded screenings, newest first
func (h *Handler) handleListClassifications(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.RespondError(w, http.StatusNotFound, "screening history is disabled")
		return
	}

	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		httputil.RespondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.RespondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	entries, err := h.history.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list screenings", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.ListResponse{Items: entries, Limit: limit, Offset: offset})
}

// handleGetClassification returns one recorded screening
func (h *Handler) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.RespondError(w, http.StatusNotFound, "screening history is disabled")
		return
	}

	entry, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to read screening", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, entry)
}

// handleSummary returns aggregate statistics over the history
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.RespondError(w, http.StatusNotFound, "screening history is disabled")
		return
	}

	sum, err := h.history.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to summarize screenings", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, sum)
}

// handleExport streams the history as an Excel workbook
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.RespondError(w, http.StatusNotFound, "screening history is disabled")
		return
	}

	var buf bytes.Buffer
	if err := h.history.ExportXLSX(r.Context(), &buf); err != nil {
		h.logger.Error("failed to export screenings", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "could not export history")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="screenings.xlsx"`)
	w.Write(buf.Bytes())
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
