package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/normalize"
)

// seriesColumns is the ordered list of columns selected in series queries.
// Must match the scan order in scanSeries.
const seriesColumns = `id, created_at, updated_at, name, description, external_refs`

// scanSeries scans a sql.Row (or sql.Rows via its Scan method) into a domain.Series.
func scanSeries(scanner interface{ Scan(dest ...any) error }) (*domain.Series, error) {
	var sr domain.Series

	var (
		createdAt   string
		updatedAt   string
		description sql.NullString
		refsJSON    string
	)

	err := scanner.Scan(
		&sr.ID,
		&createdAt,
		&updatedAt,
		&sr.Name,
		&description,
		&refsJSON,
	)
	if err != nil {
		return nil, err
	}

	sr.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sr.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		sr.Description = description.String
	}

	sr.ExternalRefs, err = unmarshalRefs(refsJSON)
	if err != nil {
		return nil, err
	}

	return &sr, nil
}

// CreateSeries inserts a new series. A second series with the same
// canonical name surfaces as ErrAlreadyExists.
func (s *Store) CreateSeries(ctx context.Context, sr *domain.Series) error {
	now := time.Now().UTC()
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = now
	}
	if sr.UpdatedAt.IsZero() {
		sr.UpdatedAt = now
	}

	refsJSON, err := marshalRefs(sr.ExternalRefs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO series (id, created_at, updated_at, name, name_normalized, description, external_refs)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sr.ID,
		formatTime(sr.CreatedAt),
		formatTime(sr.UpdatedAt),
		sr.Name,
		normalize.Name(sr.Name),
		nullString(sr.Description),
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

// GetSeries retrieves a series by ID.
// Returns ErrNotFound if the series does not exist.
func (s *Store) GetSeries(ctx context.Context, id string) (*domain.Series, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)

	sr, err := scanSeries(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sr, nil
}

// GetSeriesByName retrieves a series whose canonical name matches the
// given name. Returns ErrNotFound when no such series exists.
func (s *Store) GetSeriesByName(ctx context.Context, name string) (*domain.Series, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE name_normalized = ?`, normalize.Name(name))

	sr, err := scanSeries(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sr, nil
}

// FindSeriesByName returns series whose name contains the query,
// case-insensitively, ordered by name.
func (s *Store) FindSeriesByName(ctx context.Context, query string) ([]*domain.Series, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+seriesColumns+` FROM series
		WHERE name LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE ASC`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSeries(rows)
}

// ListSeries returns a paginated list of series ordered by name
// (case-insensitive) then id.
func (s *Store) ListSeries(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Series], error) {
	params.Validate()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM series`).Scan(&total); err != nil {
		return nil, err
	}

	query := `SELECT ` + seriesColumns + ` FROM series`
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

	items, err := collectSeries(rows)
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

	return &PaginatedResult[*domain.Series]{
		Items:      items,
		Total:      total,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, nil
}

// UpdateSeries performs a full row update on an existing series.
// Returns ErrNotFound if the series does not exist.
func (s *Store) UpdateSeries(ctx context.Context, sr *domain.Series) error {
	sr.UpdatedAt = time.Now().UTC()

	refsJSON, err := marshalRefs(sr.ExternalRefs)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE series SET
			updated_at = ?,
			name = ?,
			name_normalized = ?,
			description = ?,
			external_refs = ?
		WHERE id = ?`,
		formatTime(sr.UpdatedAt),
		sr.Name,
		normalize.Name(sr.Name),
		nullString(sr.Description),
		refsJSON,
		sr.ID,
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

// DeleteSeries removes a series. Join table rows cascade; books survive.
// Returns ErrNotFound if the series does not exist.
func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id)
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

func collectSeries(rows *sql.Rows) ([]*domain.Series, error) {
	var items []*domain.Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
