package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwellapp/inkwell-server/internal/http/response"
)

// handleProviderSearch passes a query through to a single provider and
// returns its typed results.
func (s *Server) handleProviderSearch(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query().Get("q")

	results, err := s.searchService.Search(r.Context(), provider, query)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, results, s.logger)
}
