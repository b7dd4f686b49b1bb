// Package service implements the catalog's business logic on top of the
// store and the metadata provider clients.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// RefHardcover is the external_refs key for Hardcover identifiers.
const RefHardcover = "hardcover_id"

// UnknownAuthor is attached to books whose provider record lists no
// contributors. Books never end up with an empty author set.
const UnknownAuthor = "Unknown Author"

// Resolver maps provider records onto local rows, creating them when
// absent. Lookup is by case-insensitive exact match on the normalized
// name; the store's unique index on the normalized name means two
// concurrent creates for the same name converge on a single row.
type Resolver struct {
	store  *store.Store
	logger *slog.Logger
}

// NewResolver creates a new entity resolver.
func NewResolver(st *store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  st,
		logger: logger,
	}
}

// FindOrCreateAuthor resolves an author by name, creating one with the
// given bio and provider reference if none exists. When the author
// already exists its external_refs gain the provider reference without
// overwriting entries that are already set.
func (r *Resolver) FindOrCreateAuthor(ctx context.Context, name, bio, providerID string) (*domain.Author, error) {
	if name == "" {
		return nil, errors.Validation("author name is required")
	}

	existing, err := r.store.GetAuthorByName(ctx, name)
	switch {
	case err == nil:
		return r.touchAuthorRefs(ctx, existing, providerID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("look up author %q: %w", name, err)
	}

	author := &domain.Author{
		ID:   id.MustGenerate("auth"),
		Name: name,
		Bio:  bio,
	}
	if providerID != "" {
		author.ExternalRefs = map[string]string{RefHardcover: providerID}
	}

	err = r.store.CreateAuthor(ctx, author)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race to another create for the same normalized name.
		r.logger.Debug("author create raced, re-reading", "name", name)
		return r.store.GetAuthorByName(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create author %q: %w", name, err)
	}

	r.logger.Info("author created", "author_id", author.ID, "name", name)
	return author, nil
}

// FindOrCreateSeries resolves a series by name, creating one if absent.
func (r *Resolver) FindOrCreateSeries(ctx context.Context, name, description, providerID string) (*domain.Series, error) {
	if name == "" {
		return nil, errors.Validation("series name is required")
	}

	existing, err := r.store.GetSeriesByName(ctx, name)
	switch {
	case err == nil:
		return r.touchSeriesRefs(ctx, existing, providerID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("look up series %q: %w", name, err)
	}

	series := &domain.Series{
		ID:          id.MustGenerate("ser"),
		Name:        name,
		Description: description,
	}
	if providerID != "" {
		series.ExternalRefs = map[string]string{RefHardcover: providerID}
	}

	err = r.store.CreateSeries(ctx, series)
	if errors.Is(err, store.ErrAlreadyExists) {
		r.logger.Debug("series create raced, re-reading", "name", name)
		return r.store.GetSeriesByName(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create series %q: %w", name, err)
	}

	r.logger.Info("series created", "series_id", series.ID, "name", name)
	return series, nil
}

// touchAuthorRefs merges a provider reference into an existing row.
func (r *Resolver) touchAuthorRefs(ctx context.Context, author *domain.Author, providerID string) (*domain.Author, error) {
	if providerID == "" || author.ExternalRefs[RefHardcover] != "" {
		return author, nil
	}
	author.ExternalRefs = domain.MergeExternalRefs(author.ExternalRefs, map[string]string{RefHardcover: providerID})
	if err := r.store.UpdateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("merge author refs: %w", err)
	}
	return author, nil
}

func (r *Resolver) touchSeriesRefs(ctx context.Context, series *domain.Series, providerID string) (*domain.Series, error) {
	if providerID == "" || series.ExternalRefs[RefHardcover] != "" {
		return series, nil
	}
	series.ExternalRefs = domain.MergeExternalRefs(series.ExternalRefs, map[string]string{RefHardcover: providerID})
	if err := r.store.UpdateSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("merge series refs: %w", err)
	}
	return series, nil
}
