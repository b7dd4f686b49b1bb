package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

const tagColumns = `id, created_at, updated_at, name, description`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var t domain.Tag

	var (
		createdAt   string
		updatedAt   string
		description sql.NullString
	)

	err := scanner.Scan(&t.ID, &createdAt, &updatedAt, &t.Name, &description)
	if err != nil {
		return nil, err
	}

	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		t.Description = description.String
	}

	return &t, nil
}

// CreateTag inserts a new tag. Tag names are unique case-insensitively;
// duplicates surface as ErrAlreadyExists.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, created_at, updated_at, name, description)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
		t.Name,
		nullString(t.Description),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetTag retrieves a tag by ID.
// Returns ErrNotFound if the tag does not exist.
func (s *Store) GetTag(ctx context.Context, id string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTagByName retrieves a tag by name, case-insensitively.
// Returns ErrNotFound if the tag does not exist.
func (s *Store) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = ? COLLATE NOCASE`, name)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTag performs a full row update on an existing tag. A rename that
// collides with another tag surfaces as ErrAlreadyExists.
// Returns ErrNotFound if the tag does not exist.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tags SET
			updated_at = ?,
			name = ?,
			description = ?
		WHERE id = ?`,
		formatTime(t.UpdatedAt),
		t.Name,
		nullString(t.Description),
		t.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteTag removes a tag. Book links cascade.
// Returns ErrNotFound if the tag does not exist.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBookTags replaces all tag links for a book in a single transaction.
func (s *Store) SetBookTags(ctx context.Context, bookID string, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete book_tags: %w", err)
	}

	for _, tagID := range tagIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO book_tags (book_id, tag_id)
			VALUES (?, ?)`,
			bookID, tagID,
		)
		if err != nil {
			return fmt.Errorf("insert book_tags: %w", err)
		}
	}

	return tx.Commit()
}

// GetBookTags returns the tags linked to a book, ordered by name.
func (s *Store) GetBookTags(ctx context.Context, bookID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("t", tagColumns)+`
		FROM tags t
		JOIN book_tags bt ON bt.tag_id = t.id
		WHERE bt.book_id = ?
		ORDER BY t.name COLLATE NOCASE ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query book_tags: %w", err)
	}
	defer rows.Close()

	var items []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
