package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kartoza/stunting-risk/internal/api"
	"github.com/kartoza/stunting-risk/internal/config"
	"github.com/kartoza/stunting-risk/internal/httputil"
	"github.com/kartoza/stunting-risk/internal/inference"
	"github.com/kartoza/stunting-risk/internal/model"
	"github.com/kartoza/stunting-risk/internal/models"
)

// handleModelPackStatus reports the installed and the active model pack
func (s *Server) handleModelPackStatus(w http.ResponseWriter, r *http.Request) {
	var status models.ModelPackStatus

	if m := s.api.Model(); m != nil {
		status.Loaded = true
		status.Installed = true
		status.Path = m.Pack.Dir
		status.Version = m.Pack.Manifest.Version
		status.Description = m.Pack.Manifest.Description
		httputil.RespondJSON(w, http.StatusOK, status)
		return
	}

	settings, err := config.LoadSettings()
	if err != nil {
		status.Error = err.Error()
		httputil.RespondJSON(w, http.StatusOK, status)
		return
	}
	if settings.ModelPackPath == "" {
		httputil.RespondJSON(w, http.StatusOK, status)
		return
	}

	status.Path = settings.ModelPackPath
	manifest, err := model.ReadManifest(settings.ModelPackPath)
	if err != nil {
		status.Error = "model pack is not readable: " + err.Error()
		httputil.RespondJSON(w, http.StatusOK, status)
		return
	}
	status.Installed = true
	status.Version = manifest.Version
	status.Description = manifest.Description
	httputil.RespondJSON(w, http.StatusOK, status)
}

// handleModelPackInstall extracts a model pack zip, loads it and makes it
// the active model
func (s *Server) handleModelPackInstall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("file not found: %s", req.Path))
		return
	}
	if !strings.HasSuffix(strings.ToLower(req.Path), ".zip") {
		httputil.RespondError(w, http.StatusBadRequest, "file must be a .zip archive")
		return
	}

	s.installMu.Lock()
	defer s.installMu.Unlock()

	storeDir, err := config.DataStoreDir()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not determine data directory: %v", err))
		return
	}
	extractDir := filepath.Join(storeDir, "modelpacks")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not create directory: %v", err))
		return
	}

	// The pack is loaded from a staging directory and only moved into place
	// once it loads, so a broken archive never replaces the active pack.
	staged, err := model.StagePack(req.Path, extractDir)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	m, err := api.LoadModel(staged.Dir, s.cfg.Decision.Options())
	if err != nil {
		staged.Discard()
		status := http.StatusInternalServerError
		if errors.Is(err, inference.ErrArtifactUnavailable) {
			status = http.StatusBadRequest
		}
		httputil.RespondError(w, status, fmt.Sprintf("invalid model pack: %v", err))
		return
	}

	packDir, err := staged.Commit()
	if err != nil {
		m.Close()
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// m is not yet published, so its location can still be updated
	m.Pack.Dir = packDir

	settings, _ := config.LoadSettings()
	settings.ModelPackPath = packDir
	if err := config.SaveSettings(settings); err != nil {
		m.Close()
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not save settings: %v", err))
		return
	}

	if prev := s.api.SetModel(m); prev != nil {
		go prev.Retire()
	}

	s.logger.Info("model pack installed",
		zap.String("path", packDir),
		zap.String("version", m.Pack.Manifest.Version))
	httputil.RespondJSON(w, http.StatusOK, models.ModelPackStatus{
		Installed:   true,
		Loaded:      true,
		Path:        packDir,
		Version:     m.Pack.Manifest.Version,
		Description: m.Pack.Manifest.Description,
		Message:     "Model pack installed successfully.",
	})
}
