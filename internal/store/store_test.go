package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestAuthor(id, name string) *domain.Author {
	now := time.Now()
	return &domain.Author{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         name,
		ExternalRefs: map[string]string{},
	}
}

func makeTestBook(id, title string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Title:        title,
		Status:       domain.StatusWanted,
		AStatus:      domain.StatusWanted,
		PStatus:      domain.StatusWanted,
		Editions:     []domain.Edition{},
		ExternalRefs: map[string]string{},
	}
}

func makeTestSeries(id, name string) *domain.Series {
	now := time.Now()
	return &domain.Series{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         name,
		ExternalRefs: map[string]string{},
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	tables := []string{
		"authors", "books", "series", "tags",
		"book_authors", "book_series", "book_tags",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	s2.Close()
}
