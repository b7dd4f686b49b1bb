package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/normalize"
)

// authorColumns is the ordered list of columns selected in author queries.
// Must match the scan order in scanAuthor.
const authorColumns = `id, created_at, updated_at, name, bio, external_refs`

// scanAuthor scans a sql.Row (or sql.Rows via its Scan method) into a domain.Author.
func scanAuthor(scanner interface{ Scan(dest ...any) error }) (*domain.Author, error) {
	var a domain.Author

	var (
		createdAt string
		updatedAt string
		bio       sql.NullString
		refsJSON  string
	)

	err := scanner.Scan(
		&a.ID,
		&createdAt,
		&updatedAt,
		&a.Name,
		&bio,
		&refsJSON,
	)
	if err != nil {
		return nil, err
	}

	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	a.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if bio.Valid {
		a.Bio = bio.String
	}

	a.ExternalRefs, err = unmarshalRefs(refsJSON)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// CreateAuthor inserts a new author. The canonical name index rejects a
// second author with the same normalized name; that surfaces as
// ErrAlreadyExists.
func (s *Store) CreateAuthor(ctx context.Context, a *domain.Author) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	refsJSON, err := marshalRefs(a.ExternalRefs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO authors (id, created_at, updated_at, name, name_normalized, bio, external_refs)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
		a.Name,
		normalize.Name(a.Name),
		nullString(a.Bio),
		refsJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetAuthor retrieves an author by ID.
// Returns ErrNotFound if the author does not exist.
func (s *Store) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE id = ?`, id)

	a, err := scanAuthor(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAuthorByName retrieves an author whose canonical name matches the
// given name. Returns ErrNotFound when no such author exists.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE name_normalized = ?`, normalize.Name(name))

	a, err := scanAuthor(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindAuthorsByName returns authors whose name contains the query,
// case-insensitively, ordered by name. This is a search, not a resolve:
// substring matches are intentional.
func (s *Store) FindAuthorsByName(ctx context.Context, query string) ([]*domain.Author, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+authorColumns+` FROM authors
		WHERE name LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE ASC`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuthors(rows)
}

// ListAuthors returns a paginated list of authors ordered by name
// (case-insensitive) then id.
func (s *Store) ListAuthors(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Author], error) {
	params.Validate()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&total); err != nil {
		return nil, err
	}

	query := `SELECT ` + authorColumns + ` FROM authors`
	var args []any

	if params.Cursor != "" {
		cursorName, cursorID, err := DecodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` WHERE (name COLLATE NOCASE > ? OR (name COLLATE NOCASE = ? AND id > ?))`
		args = append(args, cursorName, cursorName, cursorID)
	}

	query += ` ORDER BY name COLLATE NOCASE ASC, id ASC LIMIT ?`
	args = append(args, params.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectAuthors(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > params.Limit
	if hasMore {
		items = items[:params.Limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = EncodeCursor(last.Name, last.ID)
	}

	return &PaginatedResult[*domain.Author]{
		Items:      items,
		Total:      total,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, nil
}

// UpdateAuthor performs a full row update on an existing author.
// Returns ErrNotFound if the author does not exist.
func (s *Store) UpdateAuthor(ctx context.Context, a *domain.Author) error {
	a.UpdatedAt = time.Now().UTC()

	refsJSON, err := marshalRefs(a.ExternalRefs)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE authors SET
			updated_at = ?,
			name = ?,
			name_normalized = ?,
			bio = ?,
			external_refs = ?
		WHERE id = ?`,
		formatTime(a.UpdatedAt),
		a.Name,
		normalize.Name(a.Name),
		nullString(a.Bio),
		refsJSON,
		a.ID,
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

// DeleteAuthor removes an author. Join table rows cascade; books survive.
// Returns ErrNotFound if the author does not exist.
func (s *Store) DeleteAuthor(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, id)
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

func collectAuthors(rows *sql.Rows) ([]*domain.Author, error) {
	var items []*domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
