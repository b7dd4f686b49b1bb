package api

import (
	"net/http"
	"strconv"

	"github.com/inkwellapp/inkwell-server/internal/store"
)

// paginationParams reads limit and cursor query parameters. Invalid or
// absent limits fall back to the store defaults.
func paginationParams(r *http.Request) store.PaginationParams {
	params := store.PaginationParams{
		Cursor: r.URL.Query().Get("cursor"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	return params
}
