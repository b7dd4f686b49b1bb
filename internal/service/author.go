package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/dto"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/normalize"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// AuthorService orchestrates author CRUD and provider-backed creation.
type AuthorService struct {
	store     *store.Store
	hardcover *hardcover.Client
	resolver  *Resolver
	enricher  *Enricher
	logger    *slog.Logger
}

// NewAuthorService creates a new author service.
func NewAuthorService(st *store.Store, hc *hardcover.Client, resolver *Resolver, enricher *Enricher, logger *slog.Logger) *AuthorService {
	return &AuthorService{
		store:     st,
		hardcover: hc,
		resolver:  resolver,
		enricher:  enricher,
		logger:    logger,
	}
}

// CreateFromLookup creates an author from a provider lookup by name.
// When the provider has no usable match nothing is created and the
// caller sees a 404. On success a bibliography backfill is queued; the
// response never waits for it.
func (s *AuthorService) CreateFromLookup(ctx context.Context, name string) (*dto.Author, error) {
	if name == "" {
		return nil, errors.Validation("name is required")
	}

	hit, err := s.hardcover.SearchAuthor(ctx, name)
	if err != nil {
		if errors.Is(err, hardcover.ErrNotFound) {
			return nil, errors.Upstreamf("no provider match for author %q", name)
		}
		return nil, errors.Wrapf(err, errors.CodeUpstream, "provider lookup for author %q failed", name)
	}

	author, err := s.resolver.FindOrCreateAuthor(ctx, hit.Name, hit.Bio, hit.ID)
	if err != nil {
		return nil, err
	}

	s.enricher.Enqueue(author.ID)

	return s.project(ctx, author)
}

// Get returns an author with its book summaries.
func (s *AuthorService) Get(ctx context.Context, authorID string) (*dto.Author, error) {
	author, err := s.store.GetAuthor(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("author %s not found", authorID)
		}
		return nil, err
	}
	return s.project(ctx, author)
}

// List returns a page of authors with their book summaries.
func (s *AuthorService) List(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*dto.Author], error) {
	page, err := s.store.ListAuthors(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.Author, 0, len(page.Items))
	for _, author := range page.Items {
		projected, err := s.project(ctx, author)
		if err != nil {
			return nil, err
		}
		items = append(items, projected)
	}

	return &store.PaginatedResult[*dto.Author]{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Total:      page.Total,
	}, nil
}

// UpdateAuthorParams are the replaceable author fields.
type UpdateAuthorParams struct {
	Name         string            `json:"name" validate:"required,min=1,max=512"`
	Bio          string            `json:"bio" validate:"omitempty,max=65536"`
	ExternalRefs map[string]string `json:"external_refs"`
}

// Update replaces an author's editable fields. Incoming external_refs
// overwrite matching keys so a wrong provider link can be corrected;
// omitted keys keep their stored values.
func (s *AuthorService) Update(ctx context.Context, authorID string, params UpdateAuthorParams) (*dto.Author, error) {
	author, err := s.store.GetAuthor(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("author %s not found", authorID)
		}
		return nil, err
	}

	author.Name = params.Name
	author.Bio = params.Bio
	author.ExternalRefs = domain.OverlayExternalRefs(author.ExternalRefs, params.ExternalRefs)

	if err := s.store.UpdateAuthor(ctx, author); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.Conflict(fmt.Sprintf("another author already uses the name %q", params.Name))
		}
		return nil, err
	}

	s.logger.Info("author updated", "author_id", authorID)
	return s.project(ctx, author)
}

// Delete removes an author. Its book links are detached; the books stay.
func (s *AuthorService) Delete(ctx context.Context, authorID string) error {
	err := s.store.DeleteAuthor(ctx, authorID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.NotFoundf("author %s not found", authorID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("author deleted", "author_id", authorID)
	return nil
}

// FoundAuthor is one hit of a merged local + provider author search.
type FoundAuthor struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Bio    string `json:"bio,omitempty"`
	Source string `json:"source"` // "local" or "hardcover"
}

// FindAuthors merges a local substring search with a provider search.
// Local rows come first; the provider hit is appended unless an
// equivalent name is already present. Provider failures degrade to
// local-only results.
func (s *AuthorService) FindAuthors(ctx context.Context, name string) ([]FoundAuthor, error) {
	if name == "" {
		return nil, errors.Validation("name query parameter is required")
	}

	local, err := s.store.FindAuthorsByName(ctx, name)
	if err != nil {
		return nil, err
	}

	found := make([]FoundAuthor, 0, len(local)+1)
	for _, author := range local {
		found = append(found, FoundAuthor{
			ID:     author.ID,
			Name:   author.Name,
			Bio:    author.Bio,
			Source: "local",
		})
	}

	hit, err := s.hardcover.SearchAuthor(ctx, name)
	if err != nil {
		if !errors.Is(err, hardcover.ErrNotFound) {
			s.logger.Warn("provider author search failed", "name", name, "error", err)
		}
		return found, nil
	}

	for _, f := range found {
		if normalize.Equal(f.Name, hit.Name) {
			return found, nil
		}
	}

	return append(found, FoundAuthor{
		Name:   hit.Name,
		Bio:    hit.Bio,
		Source: "hardcover",
	}), nil
}

// RefreshBooks re-runs the bibliography backfill for an author
// synchronously and reports its outcome to the caller.
func (s *AuthorService) RefreshBooks(ctx context.Context, authorID string) error {
	return s.enricher.RunAuthorBackfill(ctx, authorID)
}

func (s *AuthorService) project(ctx context.Context, author *domain.Author) (*dto.Author, error) {
	books, err := s.store.ListBooksByAuthor(ctx, author.ID)
	if err != nil {
		return nil, fmt.Errorf("list books for author %s: %w", author.ID, err)
	}
	return &dto.Author{
		Author: author,
		Books:  dto.NewBookSummaries(books),
	}, nil
}
