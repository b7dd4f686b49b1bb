// Package api provides the HTTP API server and handlers for the Inkwell server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/service"
	"github.com/inkwellapp/inkwell-server/internal/store"
	"github.com/inkwellapp/inkwell-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         *store.Store
	authorService *service.AuthorService
	bookService   *service.BookService
	seriesService *service.SeriesService
	tagService    *service.TagService
	searchService *service.SearchService
	settings      *config.Manager
	validator     *validation.Validator
	router        *chi.Mux
	logger        *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	authors *service.AuthorService,
	books *service.BookService,
	series *service.SeriesService,
	tags *service.TagService,
	search *service.SearchService,
	settings *config.Manager,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:         st,
		authorService: authors,
		bookService:   books,
		seriesService: series,
		tagService:    tags,
		searchService: search,
		settings:      settings,
		validator:     validation.New(),
		router:        chi.NewRouter(),
		logger:        logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/authors", func(r chi.Router) {
			r.Get("/", s.handleListAuthors)
			r.Post("/", s.handleCreateAuthor)
			r.Get("/find_authors", s.handleFindAuthors)
			r.Post("/update_single_author_books/{id}", s.handleRefreshAuthorBooks)
			r.Get("/{id}", s.handleGetAuthor)
			r.Put("/{id}", s.handleUpdateAuthor)
			r.Delete("/{id}", s.handleDeleteAuthor)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/", s.handleCreateBook)
			r.Get("/{id}", s.handleGetBook)
			r.Put("/{id}", s.handleUpdateBook)
			r.Patch("/{id}", s.handlePatchBook)
			r.Delete("/{id}", s.handleDeleteBook)
		})

		r.Route("/series", func(r chi.Router) {
			r.Get("/", s.handleListSeries)
			r.Post("/", s.handleCreateSeries)
			r.Get("/{id}", s.handleGetSeries)
			r.Put("/{id}", s.handleUpdateSeries)
			r.Patch("/{id}", s.handlePatchSeries)
			r.Delete("/{id}", s.handleDeleteSeries)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Post("/", s.handleCreateTag)
			r.Get("/{id}", s.handleGetTag)
			r.Put("/{id}", s.handleUpdateTag)
			r.Delete("/{id}", s.handleDeleteTag)
		})

		r.Get("/search/{provider}", s.handleProviderSearch)

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Put("/", s.handleUpdateConfig)
			r.Get("/raw", s.handleGetRawConfig)
			r.Put("/raw", s.handlePutRawConfig)
			r.Post("/validate", s.handleValidateConfig)
			r.Post("/reload", s.handleReloadConfig)
			r.Get("/health", s.handleConfigHealth)
		})
	})
}
