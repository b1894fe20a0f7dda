package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/httputil"
	"github.com/kartoza/stunting-risk/internal/inference"
	"github.com/kartoza/stunting-risk/internal/models"
)

const noModelMessage = "no model pack loaded; install one from the setup page"

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := models.InfoResponse{
		Version:        h.cfg.Version,
		HistoryEnabled: h.history != nil,
	}
	if m := h.Model(); m != nil {
		info.ModelLoaded = true
		info.ModelVersion = m.Pipeline.Version()
		info.Threshold = m.Pipeline.Threshold()
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}

// handleSchema describes the form fields and the feature order
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	resp := models.SchemaResponse{
		ModelFeatures:   inference.ModelFeatures,
		NumericFeatures: inference.NumericFeatures,
		Fields:          inference.InputFields,
	}
	if m := h.Model(); m != nil {
		resp.Threshold = m.Pipeline.Threshold()
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// handleClassify runs one record through the pipeline and records it
func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	m := h.acquire()
	if m == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, noModelMessage)
		return
	}
	defer m.release()

	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	res, err := m.Pipeline.Classify(rec)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}

	lang := negotiateLanguage(r)
	resp := models.ClassifyResponse{
		Result:       *res,
		Label:        decisionLabel(lang, res.AtRisk),
		Language:     lang,
		ModelVersion: m.Pipeline.Version(),
	}

	if h.history != nil {
		entry, err := h.history.Record(r.Context(), rec, res, m.Pipeline.Version())
		if err != nil {
			h.logger.Warn("failed to record screening", zap.Error(err))
		} else {
			resp.ID = entry.ID
		}
	}

	h.logger.Debug("classified record",
		zap.Float64("probability_stunted", res.ProbabilityStunted),
		zap.Bool("at_risk", res.AtRisk),
		zap.String("model_version", resp.ModelVersion))

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// handleExplain returns the feature vector the classifier would see
func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	m := h.acquire()
	if m == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, noModelMessage)
		return
	}
	defer m.release()

	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	features, err := m.Pipeline.Explain(rec)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.ExplainResponse{Features: features})
}

// handleEvaluation returns the Model & Evaluation page of the loaded pack
func (h *Handler) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	m := h.Model()
	if m == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, noModelMessage)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, m.Evaluation)
}

func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request) (inference.RawRecord, bool) {
	var in inference.RecordInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return inference.RawRecord{}, false
	}

	rec, err := in.Record()
	if err != nil {
		h.respondPipelineError(w, err)
		return inference.RawRecord{}, false
	}
	return rec, true
}

func (h *Handler) respondPipelineError(w http.ResponseWriter, err error) {
	var inputErr *inference.InputError
	switch {
	case errors.As(err, &inputErr):
		httputil.RespondFieldErrors(w, inference.ErrInvalidInput.Error(), inputErr.Fields)
	case errors.Is(err, inference.ErrInvalidInput):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inference.ErrArtifactUnavailable):
		h.logger.Error("model pack unusable", zap.Error(err))
		httputil.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("classification failed", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "classification failed")
	}
}
