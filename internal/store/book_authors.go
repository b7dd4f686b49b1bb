package store

import (
	"context"
	"fmt"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// SetBookAuthors replaces all author links for a book in a single
// transaction. It deletes existing rows and inserts the new set.
func (s *Store) SetBookAuthors(ctx context.Context, bookID string, authorIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete book_authors: %w", err)
	}

	for _, authorID := range authorIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO book_authors (book_id, author_id)
			VALUES (?, ?)`,
			bookID, authorID,
		)
		if err != nil {
			return fmt.Errorf("insert book_authors: %w", err)
		}
	}

	return tx.Commit()
}

// GetBookAuthors returns the authors linked to a book, ordered by name.
func (s *Store) GetBookAuthors(ctx context.Context, bookID string) ([]*domain.Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("a", authorColumns)+`
		FROM authors a
		JOIN book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id = ?
		ORDER BY a.name COLLATE NOCASE ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query book_authors: %w", err)
	}
	defer rows.Close()

	return collectAuthors(rows)
}

// ListBooksByAuthor returns the books linked to an author, ordered by title.
func (s *Store) ListBooksByAuthor(ctx context.Context, authorID string) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("b", bookColumns)+`
		FROM books b
		JOIN book_authors ba ON ba.book_id = b.id
		WHERE ba.author_id = ?
		ORDER BY b.title COLLATE NOCASE ASC`, authorID)
	if err != nil {
		return nil, fmt.Errorf("query author books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}
