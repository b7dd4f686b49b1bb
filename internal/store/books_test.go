package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := makeTestBook("book-1", "The Way of Kings")
	b.Description = "First book of the Stormlight Archive."
	b.Editions = []domain.Edition{
		{ASIN: "B00540QR7Q", ISBN10: "0765326353", ISBN13: "9780765326355"},
	}
	b.ExternalRefs = map[string]string{"hardcover_id": "431"}

	if err := s.CreateBook(ctx, b); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}

	if got.Title != b.Title {
		t.Errorf("Title: got %q, want %q", got.Title, b.Title)
	}
	if got.Status != domain.StatusWanted {
		t.Errorf("Status: got %q", got.Status)
	}
	if len(got.Editions) != 1 || got.Editions[0].ISBN13 != "9780765326355" {
		t.Errorf("Editions: got %+v", got.Editions)
	}
	if got.ExternalRefs["hardcover_id"] != "431" {
		t.Errorf("ExternalRefs: got %v", got.ExternalRefs)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBook(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListBooks_OrderedByTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	titles := []string{"the way of kings", "Elantris", "Warbreaker"}
	for i, title := range titles {
		if err := s.CreateBook(ctx, makeTestBook(fmt.Sprintf("book-%d", i), title)); err != nil {
			t.Fatalf("CreateBook %s: %v", title, err)
		}
	}

	result, err := s.ListBooks(ctx, PaginationParams{})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 books, got %d", len(result.Items))
	}

	// Case-insensitive title order.
	want := []string{"Elantris", "the way of kings", "Warbreaker"}
	for i, title := range want {
		if result.Items[i].Title != title {
			t.Errorf("item %d: got %q, want %q", i, result.Items[i].Title, title)
		}
	}
}

func TestFindBooksByTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	titles := []string{"The Way of Kings", "Words of Radiance", "Elantris"}
	for i, title := range titles {
		if err := s.CreateBook(ctx, makeTestBook(fmt.Sprintf("book-%d", i), title)); err != nil {
			t.Fatalf("CreateBook: %v", err)
		}
	}

	found, err := s.FindBooksByTitle(ctx, "of")
	if err != nil {
		t.Fatalf("FindBooksByTitle: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 matches, got %d", len(found))
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := makeTestBook("book-1", "Elantris")
	if err := s.CreateBook(ctx, b); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	b.Description = "Standalone epic fantasy."
	b.Status = domain.StatusHave
	b.UpdatedAt = time.Now()
	if err := s.UpdateBook(ctx, b); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Description != "Standalone epic fantasy." {
		t.Errorf("Description: got %q", got.Description)
	}
	if got.Status != domain.StatusHave {
		t.Errorf("Status: got %q", got.Status)
	}
}

func TestUpdateBookStatuses_Partial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, makeTestBook("book-1", "Elantris")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	// Patch only a_status; the others stay.
	have := domain.StatusHave
	err := s.UpdateBookStatuses(ctx, "book-1", StatusPatch{AStatus: &have}, time.Now())
	if err != nil {
		t.Fatalf("UpdateBookStatuses: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.AStatus != domain.StatusHave {
		t.Errorf("AStatus: got %q, want have", got.AStatus)
	}
	if got.Status != domain.StatusWanted {
		t.Errorf("Status changed unexpectedly: got %q", got.Status)
	}
	if got.PStatus != domain.StatusWanted {
		t.Errorf("PStatus changed unexpectedly: got %q", got.PStatus)
	}

	// Patch two at once.
	ignored := domain.StatusIgnored
	err = s.UpdateBookStatuses(ctx, "book-1", StatusPatch{Status: &ignored, PStatus: &have}, time.Now())
	if err != nil {
		t.Fatalf("UpdateBookStatuses: %v", err)
	}

	got, err = s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Status != domain.StatusIgnored || got.PStatus != domain.StatusHave || got.AStatus != domain.StatusHave {
		t.Errorf("statuses: got %q/%q/%q", got.Status, got.AStatus, got.PStatus)
	}
}

func TestUpdateBookStatuses_NotFound(t *testing.T) {
	s := newTestStore(t)

	have := domain.StatusHave
	err := s.UpdateBookStatuses(context.Background(), "missing", StatusPatch{Status: &have}, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, makeTestBook("book-1", "Elantris")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	if err := s.DeleteBook(ctx, "book-1"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if _, err := s.GetBook(ctx, "book-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBookExistsForAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAuthor(ctx, makeTestAuthor("auth-1", "Brandon Sanderson")); err != nil {
		t.Fatalf("CreateAuthor: %v", err)
	}
	if err := s.CreateBook(ctx, makeTestBook("book-1", "Elantris")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if err := s.SetBookAuthors(ctx, "book-1", []string{"auth-1"}); err != nil {
		t.Fatalf("SetBookAuthors: %v", err)
	}

	exists, err := s.BookExistsForAuthor(ctx, "auth-1", "ELANTRIS")
	if err != nil {
		t.Fatalf("BookExistsForAuthor: %v", err)
	}
	if !exists {
		t.Error("expected case-insensitive title match")
	}

	exists, err = s.BookExistsForAuthor(ctx, "auth-1", "Warbreaker")
	if err != nil {
		t.Fatalf("BookExistsForAuthor: %v", err)
	}
	if exists {
		t.Error("unexpected match for different title")
	}
}

func TestBookSeriesLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateSeries(ctx, makeTestSeries("ser-1", "The Stormlight Archive")); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	if err := s.CreateBook(ctx, makeTestBook("book-1", "The Way of Kings")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if err := s.CreateBook(ctx, makeTestBook("book-2", "Words of Radiance")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	if err := s.SetBookSeries(ctx, "book-1", []domain.SeriesMembership{{SeriesID: "ser-1", Position: 1}}); err != nil {
		t.Fatalf("SetBookSeries: %v", err)
	}
	if err := s.SetBookSeries(ctx, "book-2", []domain.SeriesMembership{{SeriesID: "ser-1", Position: 2}}); err != nil {
		t.Fatalf("SetBookSeries: %v", err)
	}

	memberships, err := s.GetBookSeries(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBookSeries: %v", err)
	}
	if len(memberships) != 1 || memberships[0].Position != 1 {
		t.Errorf("memberships: got %+v", memberships)
	}

	books, err := s.ListBooksBySeries(ctx, "ser-1")
	if err != nil {
		t.Fatalf("ListBooksBySeries: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books in series, got %d", len(books))
	}
	if books[0].ID != "book-1" || books[1].ID != "book-2" {
		t.Errorf("series order: got %q, %q", books[0].ID, books[1].ID)
	}

	// Replacing links drops the old set.
	if err := s.SetBookSeries(ctx, "book-1", nil); err != nil {
		t.Fatalf("SetBookSeries clear: %v", err)
	}
	memberships, err = s.GetBookSeries(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBookSeries: %v", err)
	}
	if len(memberships) != 0 {
		t.Errorf("expected no memberships, got %d", len(memberships))
	}
}
