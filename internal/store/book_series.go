package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// SetBookSeries replaces all series links for a book in a single
// transaction. It deletes existing rows and inserts the new set.
func (s *Store) SetBookSeries(ctx context.Context, bookID string, memberships []domain.SeriesMembership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_series WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete book_series: %w", err)
	}

	for _, m := range memberships {
		var position any
		if m.Position != 0 {
			position = m.Position
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO book_series (book_id, series_id, position)
			VALUES (?, ?, ?)`,
			bookID, m.SeriesID, position,
		)
		if err != nil {
			return fmt.Errorf("insert book_series: %w", err)
		}
	}

	return tx.Commit()
}

// GetBookSeries returns all series memberships for a book.
func (s *Store) GetBookSeries(ctx context.Context, bookID string) ([]domain.SeriesMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT series_id, position
		FROM book_series
		WHERE book_id = ?`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query book_series: %w", err)
	}
	defer rows.Close()

	var memberships []domain.SeriesMembership
	for rows.Next() {
		var (
			m   domain.SeriesMembership
			pos sql.NullFloat64
		)

		if err := rows.Scan(&m.SeriesID, &pos); err != nil {
			return nil, fmt.Errorf("scan book_series: %w", err)
		}

		if pos.Valid {
			m.Position = pos.Float64
		}

		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return memberships, nil
}

// ListBooksBySeries returns the books in a series ordered by position,
// unplaced books last by title.
func (s *Store) ListBooksBySeries(ctx context.Context, seriesID string) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("b", bookColumns)+`
		FROM books b
		JOIN book_series bs ON bs.book_id = b.id
		WHERE bs.series_id = ?
		ORDER BY bs.position IS NULL, bs.position ASC, b.title COLLATE NOCASE ASC`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query series books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}
