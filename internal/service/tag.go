package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// TagService manages user-defined labels. Tags are never populated by
// enrichment; they exist only through explicit calls.
type TagService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(st *store.Store, logger *slog.Logger) *TagService {
	return &TagService{
		store:  st,
		logger: logger,
	}
}

// List returns all tags.
func (s *TagService) List(ctx context.Context) ([]*domain.Tag, error) {
	return s.store.ListTags(ctx)
}

// Get returns a tag by id.
func (s *TagService) Get(ctx context.Context, tagID string) (*domain.Tag, error) {
	tag, err := s.store.GetTag(ctx, tagID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFoundf("tag %s not found", tagID)
	}
	return tag, err
}

// CreateTagParams are the tag creation fields.
type CreateTagParams struct {
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"omitempty,max=4096"`
}

// Create creates a tag. Names are unique case-insensitively.
func (s *TagService) Create(ctx context.Context, params CreateTagParams) (*domain.Tag, error) {
	tag := &domain.Tag{
		ID:          id.MustGenerate("tag"),
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
	}
	if tag.Name == "" {
		return nil, errors.Validation("name is required")
	}

	if err := s.store.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.AlreadyExists("tag " + tag.Name + " already exists")
		}
		return nil, err
	}

	s.logger.Info("tag created", "tag_id", tag.ID, "name", tag.Name)
	return tag, nil
}

// FindOrCreate resolves a tag by name, creating it when absent.
func (s *TagService) FindOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("tag name is required")
	}

	tag, err := s.store.GetTagByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := s.Create(ctx, CreateTagParams{Name: name})
	if errors.Is(err, errors.ErrAlreadyExists) {
		return s.store.GetTagByName(ctx, name)
	}
	return created, err
}

// UpdateTagParams are the tag update fields.
type UpdateTagParams struct {
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"omitempty,max=4096"`
}

// Update replaces a tag's name and description.
func (s *TagService) Update(ctx context.Context, tagID string, params UpdateTagParams) (*domain.Tag, error) {
	tag, err := s.Get(ctx, tagID)
	if err != nil {
		return nil, err
	}

	tag.Name = strings.TrimSpace(params.Name)
	tag.Description = params.Description
	if tag.Name == "" {
		return nil, errors.Validation("name is required")
	}

	if err := s.store.UpdateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.Conflict("tag " + tag.Name + " already exists")
		}
		return nil, err
	}

	s.logger.Info("tag updated", "tag_id", tag.ID, "name", tag.Name)
	return tag, nil
}

// Delete removes a tag and its book links.
func (s *TagService) Delete(ctx context.Context, tagID string) error {
	err := s.store.DeleteTag(ctx, tagID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.NotFoundf("tag %s not found", tagID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("tag deleted", "tag_id", tagID)
	return nil
}
