package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwellapp/inkwell-server/internal/http/response"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// CreateSeriesRequest is the body for provider-backed series creation.
type CreateSeriesRequest struct {
	Name string `json:"name" validate:"required,min=1,max=512"`
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req CreateSeriesRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	series, err := s.seriesService.CreateFromLookup(r.Context(), req.Name)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, series, s.logger)
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	page, err := s.seriesService.List(r.Context(), paginationParams(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, page, s.logger)
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.seriesService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, series, s.logger)
}

func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSeriesParams
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	series, err := s.seriesService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, series, s.logger)
}

func (s *Server) handlePatchSeries(w http.ResponseWriter, r *http.Request) {
	var req service.PatchSeriesParams
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	series, err := s.seriesService.Patch(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, series, s.logger)
}

func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	if err := s.seriesService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
