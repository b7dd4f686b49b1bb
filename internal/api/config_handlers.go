package api

import (
	"encoding/json/v2"
	"io"
	"net/http"

	"github.com/inkwellapp/inkwell-server/internal/http/response"
)

// handleGetConfig returns the settings document with secrets masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Current()
	if err != nil {
		s.logger.Error("Failed to load settings", "error", err)
		response.InternalError(w, "Failed to load configuration", s.logger)
		return
	}

	masked, err := settings.Masked()
	if err != nil {
		s.logger.Error("Failed to mask settings", "error", err)
		response.InternalError(w, "Failed to render configuration", s.logger)
		return
	}
	response.Success(w, masked, s.logger)
}

// RawConfigResponse carries the settings document as TOML text.
type RawConfigResponse struct {
	TOML string `json:"toml"`
}

// handleGetRawConfig returns the unmasked TOML document.
func (s *Server) handleGetRawConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := s.settings.String()
	if err != nil {
		s.logger.Error("Failed to serialize settings", "error", err)
		response.InternalError(w, "Failed to render configuration", s.logger)
		return
	}
	response.Success(w, RawConfigResponse{TOML: doc}, s.logger)
}

// handleUpdateConfig deep-merges a partial settings document into the
// current one, validates, and saves.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.UnmarshalRead(r.Body, &patch); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	settings, err := s.settings.Update(patch)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}

	masked, err := settings.Masked()
	if err != nil {
		s.logger.Error("Failed to mask settings", "error", err)
		response.InternalError(w, "Failed to render configuration", s.logger)
		return
	}
	response.Success(w, masked, s.logger)
}

// handlePutRawConfig replaces the whole document from TOML text.
func (s *Server) handlePutRawConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Failed to read request body", s.logger)
		return
	}

	if _, err := s.settings.FromString(string(body)); err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	response.Success(w, RawConfigResponse{TOML: string(body)}, s.logger)
}

// ValidateConfigResponse reports whether a candidate document parses as
// TOML and passes settings validation.
type ValidateConfigResponse struct {
	TOMLValid     bool     `json:"toml_valid"`
	SettingsValid bool     `json:"settings_valid"`
	Errors        []string `json:"errors,omitempty"`
}

// handleValidateConfig validates a candidate TOML document without
// saving it.
func (s *Server) handleValidateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Failed to read request body", s.logger)
		return
	}

	tomlValid, settingsValid, errs := s.settings.ValidateString(string(body))
	response.Success(w, ValidateConfigResponse{
		TOMLValid:     tomlValid,
		SettingsValid: settingsValid,
		Errors:        errs,
	}, s.logger)
}

// handleReloadConfig forces a reload from disk.
func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Reload()
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	masked, err := settings.Masked()
	if err != nil {
		s.logger.Error("Failed to mask settings", "error", err)
		response.InternalError(w, "Failed to render configuration", s.logger)
		return
	}
	response.Success(w, masked, s.logger)
}

// ConfigHealthResponse describes the state of the settings file.
type ConfigHealthResponse struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

// handleConfigHealth reports whether the settings file exists and parses.
func (s *Server) handleConfigHealth(w http.ResponseWriter, r *http.Request) {
	valid, message := s.settings.ValidateFile()
	response.Success(w, ConfigHealthResponse{
		Path:   s.settings.Path(),
		Exists: s.settings.FileExists(),
		Valid:  valid,
		Error:  message,
	}, s.logger)
}
