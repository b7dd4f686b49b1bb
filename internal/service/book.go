package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/dto"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// BookService orchestrates book CRUD and provider-backed creation.
type BookService struct {
	store     *store.Store
	hardcover *hardcover.Client
	resolver  *Resolver
	tags      *TagService
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(st *store.Store, hc *hardcover.Client, resolver *Resolver, tags *TagService, logger *slog.Logger) *BookService {
	return &BookService{
		store:     st,
		hardcover: hc,
		resolver:  resolver,
		tags:      tags,
		logger:    logger,
	}
}

// CreateFromLookup creates a book from a provider lookup by title,
// resolving its contributors to local authors. A provider record with
// no contributors gets the Unknown Author placeholder so the book is
// never left without an author link.
func (s *BookService) CreateFromLookup(ctx context.Context, title string) (*dto.Book, error) {
	if title == "" {
		return nil, errors.Validation("title is required")
	}

	hit, err := s.hardcover.SearchBook(ctx, title)
	if err != nil {
		if errors.Is(err, hardcover.ErrNotFound) {
			return nil, errors.Upstreamf("no provider match for book %q", title)
		}
		return nil, errors.Wrapf(err, errors.CodeUpstream, "provider lookup for book %q failed", title)
	}

	authorNames := hit.AuthorNames
	if len(authorNames) == 0 {
		authorNames = []string{UnknownAuthor}
	}

	authorIDs := make([]string, 0, len(authorNames))
	for _, name := range authorNames {
		author, err := s.resolver.FindOrCreateAuthor(ctx, name, "", "")
		if err != nil {
			return nil, err
		}
		authorIDs = append(authorIDs, author.ID)
	}

	book := &domain.Book{
		ID:          id.MustGenerate("book"),
		Title:       hit.Title,
		Description: hit.Description,
		Status:      domain.StatusWanted,
		AStatus:     domain.StatusWanted,
		PStatus:     domain.StatusWanted,
	}
	if hit.ID != "" {
		book.ExternalRefs = map[string]string{RefHardcover: hit.ID}
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, err
	}
	if err := s.store.SetBookAuthors(ctx, book.ID, authorIDs); err != nil {
		return nil, err
	}

	s.logger.Info("book created from lookup", "book_id", book.ID, "title", book.Title)
	return s.project(ctx, book)
}

// Get returns a book with its resolved relationships.
func (s *BookService) Get(ctx context.Context, bookID string) (*dto.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("book %s not found", bookID)
		}
		return nil, err
	}
	return s.project(ctx, book)
}

// List returns a page of books with their resolved relationships.
func (s *BookService) List(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*dto.Book], error) {
	page, err := s.store.ListBooks(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.Book, 0, len(page.Items))
	for _, book := range page.Items {
		projected, err := s.project(ctx, book)
		if err != nil {
			return nil, err
		}
		items = append(items, projected)
	}

	return &store.PaginatedResult[*dto.Book]{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Total:      page.Total,
	}, nil
}

// UpdateBookParams are the replaceable book fields. Tags, when present,
// replace the book's tag set by name.
type UpdateBookParams struct {
	Title        string            `json:"title" validate:"required,min=1,max=512"`
	Description  string            `json:"description" validate:"omitempty,max=65536"`
	Status       domain.BookStatus `json:"status" validate:"omitempty,bookstatus"`
	AStatus      domain.BookStatus `json:"a_status" validate:"omitempty,bookstatus"`
	PStatus      domain.BookStatus `json:"p_status" validate:"omitempty,bookstatus"`
	Editions     []domain.Edition  `json:"editions"`
	ExternalRefs map[string]string `json:"external_refs"`
	Tags         *[]string         `json:"tags"`
}

// Update replaces a book's editable fields. External refs merge rather
// than replace.
func (s *BookService) Update(ctx context.Context, bookID string, params UpdateBookParams) (*dto.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("book %s not found", bookID)
		}
		return nil, err
	}

	book.Title = params.Title
	book.Description = params.Description
	if params.Status != "" {
		book.Status = params.Status
	}
	if params.AStatus != "" {
		book.AStatus = params.AStatus
	}
	if params.PStatus != "" {
		book.PStatus = params.PStatus
	}
	if params.Editions != nil {
		book.Editions = params.Editions
	}
	book.ExternalRefs = domain.OverlayExternalRefs(book.ExternalRefs, params.ExternalRefs)

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	if params.Tags != nil {
		if err := s.setTags(ctx, bookID, *params.Tags); err != nil {
			return nil, err
		}
	}

	s.logger.Info("book updated", "book_id", bookID)
	return s.project(ctx, book)
}

// PatchStatusParams carries an independent partial update of the three
// status fields; nil members are left untouched.
type PatchStatusParams struct {
	Status  *domain.BookStatus `json:"status" validate:"omitempty,bookstatus"`
	AStatus *domain.BookStatus `json:"a_status" validate:"omitempty,bookstatus"`
	PStatus *domain.BookStatus `json:"p_status" validate:"omitempty,bookstatus"`
}

// PatchStatuses updates only the provided status fields.
func (s *BookService) PatchStatuses(ctx context.Context, bookID string, params PatchStatusParams) (*dto.Book, error) {
	patch := store.StatusPatch{
		Status:  params.Status,
		AStatus: params.AStatus,
		PStatus: params.PStatus,
	}
	if patch.Empty() {
		return nil, errors.Validation("at least one of status, a_status, p_status is required")
	}

	err := s.store.UpdateBookStatuses(ctx, bookID, patch, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("book %s not found", bookID)
		}
		return nil, err
	}

	s.logger.Info("book statuses patched", "book_id", bookID)
	return s.Get(ctx, bookID)
}

// Delete removes a book and its association rows.
func (s *BookService) Delete(ctx context.Context, bookID string) error {
	err := s.store.DeleteBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.NotFoundf("book %s not found", bookID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("book deleted", "book_id", bookID)
	return nil
}

// setTags replaces the book's tag set, creating missing tags by name.
func (s *BookService) setTags(ctx context.Context, bookID string, names []string) error {
	tagIDs := make([]string, 0, len(names))
	for _, name := range names {
		tag, err := s.tags.FindOrCreate(ctx, name)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	return s.store.SetBookTags(ctx, bookID, tagIDs)
}

func (s *BookService) project(ctx context.Context, book *domain.Book) (*dto.Book, error) {
	authors, err := s.store.GetBookAuthors(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("load authors for book %s: %w", book.ID, err)
	}

	memberships, err := s.store.GetBookSeries(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("load series for book %s: %w", book.ID, err)
	}
	seriesInfos := make([]dto.SeriesInfo, 0, len(memberships))
	for _, m := range memberships {
		series, err := s.store.GetSeries(ctx, m.SeriesID)
		if err != nil {
			return nil, fmt.Errorf("load series %s: %w", m.SeriesID, err)
		}
		seriesInfos = append(seriesInfos, dto.SeriesInfo{
			SeriesID: series.ID,
			Name:     series.Name,
			Position: m.Position,
		})
	}

	tags, err := s.store.GetBookTags(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("load tags for book %s: %w", book.ID, err)
	}
	tagNames := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagNames = append(tagNames, tag.Name)
	}

	return &dto.Book{
		Book:    book,
		Authors: dto.NewAuthorSummaries(authors),
		Series:  seriesInfos,
		Tags:    tagNames,
	}, nil
}
