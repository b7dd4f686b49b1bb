package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwellapp/inkwell-server/internal/http/response"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// CreateAuthorRequest is the body for provider-backed author creation.
type CreateAuthorRequest struct {
	Name string `json:"name" validate:"required,min=1,max=512"`
}

// handleCreateAuthor creates an author via a provider lookup. No provider
// match means 404 and nothing is created.
func (s *Server) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req CreateAuthorRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	author, err := s.authorService.CreateFromLookup(r.Context(), req.Name)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, author, s.logger)
}

func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	page, err := s.authorService.List(r.Context(), paginationParams(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, page, s.logger)
}

func (s *Server) handleGetAuthor(w http.ResponseWriter, r *http.Request) {
	author, err := s.authorService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, author, s.logger)
}

func (s *Server) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateAuthorParams
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	author, err := s.authorService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, author, s.logger)
}

func (s *Server) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	if err := s.authorService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleFindAuthors merges local substring matches with a provider search.
func (s *Server) handleFindAuthors(w http.ResponseWriter, r *http.Request) {
	found, err := s.authorService.FindAuthors(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, found, s.logger)
}

// handleRefreshAuthorBooks re-runs the bibliography backfill synchronously.
func (s *Server) handleRefreshAuthorBooks(w http.ResponseWriter, r *http.Request) {
	authorID := chi.URLParam(r, "id")
	if err := s.authorService.RefreshBooks(r.Context(), authorID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	author, err := s.authorService.Get(r.Context(), authorID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, author, s.logger)
}
