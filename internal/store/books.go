package store

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at, title, description, status, a_status, p_status, editions, external_refs`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		createdAt    string
		updatedAt    string
		description  sql.NullString
		editionsJSON string
		refsJSON     string
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&b.Title,
		&description,
		&b.Status,
		&b.AStatus,
		&b.PStatus,
		&editionsJSON,
		&refsJSON,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		b.Description = description.String
	}

	if err := json.Unmarshal([]byte(editionsJSON), &b.Editions); err != nil {
		return nil, err
	}

	b.ExternalRefs, err = unmarshalRefs(refsJSON)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a new book.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}

	editions := b.Editions
	if editions == nil {
		editions = []domain.Edition{}
	}
	editionsJSON, err := json.Marshal(editions)
	if err != nil {
		return err
	}

	refsJSON, err := marshalRefs(b.ExternalRefs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books (id, created_at, updated_at, title, description, status, a_status, p_status, editions, external_refs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
		b.Title,
		nullString(b.Description),
		string(b.Status),
		string(b.AStatus),
		string(b.PStatus),
		string(editionsJSON),
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

// GetBook retrieves a book by ID.
// Returns ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns a paginated list of books ordered by title
// (case-insensitive) then id.
func (s *Store) ListBooks(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Book], error) {
	params.Validate()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, err
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	var args []any

	if params.Cursor != "" {
		cursorTitle, cursorID, err := DecodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` WHERE (title COLLATE NOCASE > ? OR (title COLLATE NOCASE = ? AND id > ?))`
		args = append(args, cursorTitle, cursorTitle, cursorID)
	}

	query += ` ORDER BY title COLLATE NOCASE ASC, id ASC LIMIT ?`
	args = append(args, params.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectBooks(rows)
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
		nextCursor = EncodeCursor(last.Title, last.ID)
	}

	return &PaginatedResult[*domain.Book]{
		Items:      items,
		Total:      total,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, nil
}

// FindBooksByTitle returns books whose title contains the query,
// case-insensitively, ordered by title.
func (s *Store) FindBooksByTitle(ctx context.Context, query string) ([]*domain.Book, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books
		WHERE title LIKE ? ESCAPE '\'
		ORDER BY title COLLATE NOCASE ASC`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBooks(rows)
}

// UpdateBook performs a full row update on an existing book.
// Returns ErrNotFound if the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	b.UpdatedAt = time.Now().UTC()

	editions := b.Editions
	if editions == nil {
		editions = []domain.Edition{}
	}
	editionsJSON, err := json.Marshal(editions)
	if err != nil {
		return err
	}

	refsJSON, err := marshalRefs(b.ExternalRefs)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			updated_at = ?,
			title = ?,
			description = ?,
			status = ?,
			a_status = ?,
			p_status = ?,
			editions = ?,
			external_refs = ?
		WHERE id = ?`,
		formatTime(b.UpdatedAt),
		b.Title,
		nullString(b.Description),
		string(b.Status),
		string(b.AStatus),
		string(b.PStatus),
		string(editionsJSON),
		refsJSON,
		b.ID,
	)
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

// StatusPatch carries a partial update of a book's status fields. Nil
// fields are left untouched.
type StatusPatch struct {
	Status  *domain.BookStatus
	AStatus *domain.BookStatus
	PStatus *domain.BookStatus
}

// Empty reports whether the patch changes nothing.
func (p StatusPatch) Empty() bool {
	return p.Status == nil && p.AStatus == nil && p.PStatus == nil
}

// UpdateBookStatuses applies a partial status update to a book.
// Returns ErrNotFound if the book does not exist.
func (s *Store) UpdateBookStatuses(ctx context.Context, id string, patch StatusPatch, updatedAt time.Time) error {
	query := `UPDATE books SET updated_at = ?`
	args := []any{formatTime(updatedAt)}

	if patch.Status != nil {
		query += `, status = ?`
		args = append(args, string(*patch.Status))
	}
	if patch.AStatus != nil {
		query += `, a_status = ?`
		args = append(args, string(*patch.AStatus))
	}
	if patch.PStatus != nil {
		query += `, p_status = ?`
		args = append(args, string(*patch.PStatus))
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
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

// DeleteBook removes a book. Join table rows cascade.
// Returns ErrNotFound if the book does not exist.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
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

// BookExistsForAuthor reports whether the author already has a book with
// the given title, compared case-insensitively.
func (s *Store) BookExistsForAuthor(ctx context.Context, authorID, title string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM books b
		JOIN book_authors ba ON ba.book_id = b.id
		WHERE ba.author_id = ? AND b.title = ? COLLATE NOCASE`,
		authorID, title).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func collectBooks(rows *sql.Rows) ([]*domain.Book, error) {
	var items []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
