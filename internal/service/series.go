package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/dto"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// SeriesService orchestrates series CRUD and provider-backed creation.
type SeriesService struct {
	store     *store.Store
	hardcover *hardcover.Client
	resolver  *Resolver
	logger    *slog.Logger
}

// NewSeriesService creates a new series service.
func NewSeriesService(st *store.Store, hc *hardcover.Client, resolver *Resolver, logger *slog.Logger) *SeriesService {
	return &SeriesService{
		store:     st,
		hardcover: hc,
		resolver:  resolver,
		logger:    logger,
	}
}

// CreateFromLookup creates a series from a provider lookup by name.
func (s *SeriesService) CreateFromLookup(ctx context.Context, name string) (*dto.Series, error) {
	if name == "" {
		return nil, errors.Validation("name is required")
	}

	hit, err := s.hardcover.SearchSeries(ctx, name)
	if err != nil {
		if errors.Is(err, hardcover.ErrNotFound) {
			return nil, errors.Upstreamf("no provider match for series %q", name)
		}
		return nil, errors.Wrapf(err, errors.CodeUpstream, "provider lookup for series %q failed", name)
	}

	series, err := s.resolver.FindOrCreateSeries(ctx, hit.Name, "", hit.ID)
	if err != nil {
		return nil, err
	}

	return s.project(ctx, series)
}

// Get returns a series with its books in series order.
func (s *SeriesService) Get(ctx context.Context, seriesID string) (*dto.Series, error) {
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("series %s not found", seriesID)
		}
		return nil, err
	}
	return s.project(ctx, series)
}

// List returns a page of series with their book summaries.
func (s *SeriesService) List(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*dto.Series], error) {
	page, err := s.store.ListSeries(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.Series, 0, len(page.Items))
	for _, series := range page.Items {
		projected, err := s.project(ctx, series)
		if err != nil {
			return nil, err
		}
		items = append(items, projected)
	}

	return &store.PaginatedResult[*dto.Series]{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Total:      page.Total,
	}, nil
}

// UpdateSeriesParams are the replaceable series fields.
type UpdateSeriesParams struct {
	Name         string            `json:"name" validate:"required,min=1,max=512"`
	Description  string            `json:"description" validate:"omitempty,max=65536"`
	ExternalRefs map[string]string `json:"external_refs"`
}

// Update replaces a series' editable fields.
func (s *SeriesService) Update(ctx context.Context, seriesID string, params UpdateSeriesParams) (*dto.Series, error) {
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("series %s not found", seriesID)
		}
		return nil, err
	}

	series.Name = params.Name
	series.Description = params.Description
	series.ExternalRefs = domain.OverlayExternalRefs(series.ExternalRefs, params.ExternalRefs)

	if err := s.store.UpdateSeries(ctx, series); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.Conflict(fmt.Sprintf("another series already uses the name %q", params.Name))
		}
		return nil, err
	}

	s.logger.Info("series updated", "series_id", seriesID)
	return s.project(ctx, series)
}

// PatchSeriesParams updates only the provided fields.
type PatchSeriesParams struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=512"`
	Description *string `json:"description" validate:"omitempty,max=65536"`
}

// Patch updates the provided series fields, leaving the rest untouched.
func (s *SeriesService) Patch(ctx context.Context, seriesID string, params PatchSeriesParams) (*dto.Series, error) {
	if params.Name == nil && params.Description == nil {
		return nil, errors.Validation("at least one of name, description is required")
	}

	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("series %s not found", seriesID)
		}
		return nil, err
	}

	if params.Name != nil {
		series.Name = *params.Name
	}
	if params.Description != nil {
		series.Description = *params.Description
	}

	if err := s.store.UpdateSeries(ctx, series); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.Conflict(fmt.Sprintf("another series already uses the name %q", series.Name))
		}
		return nil, err
	}

	return s.project(ctx, series)
}

// Delete removes a series. Its books are detached, never deleted.
func (s *SeriesService) Delete(ctx context.Context, seriesID string) error {
	err := s.store.DeleteSeries(ctx, seriesID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.NotFoundf("series %s not found", seriesID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("series deleted", "series_id", seriesID)
	return nil
}

func (s *SeriesService) project(ctx context.Context, series *domain.Series) (*dto.Series, error) {
	books, err := s.store.ListBooksBySeries(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("list books for series %s: %w", series.ID, err)
	}
	return &dto.Series{
		Series: series,
		Books:  dto.NewBookSummaries(books),
	}, nil
}
