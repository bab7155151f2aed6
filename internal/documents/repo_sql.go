package documents

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// SQLRepo implements Repo on PostgreSQL or SQLite. Queries use ? and are
// rebound for the connection's driver.
type SQLRepo struct {
	DB *sqlx.DB
}

// NewSQLRepo wraps an open connection.
func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{DB: db}
}

const documentColumns = `id, user_id, file_name, storage_key, mime_type, size_bytes, access_token, status,
ocr_text, summary, tags, processing_error, download_count, qr_generation_count, last_accessed_at, created_at, updated_at`

type documentRow struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	FileName          string         `db:"file_name"`
	StorageKey        string         `db:"storage_key"`
	MimeType          string         `db:"mime_type"`
	SizeBytes         int64          `db:"size_bytes"`
	AccessToken       string         `db:"access_token"`
	Status            string         `db:"status"`
	OCRText           sql.NullString `db:"ocr_text"`
	Summary           sql.NullString `db:"summary"`
	Tags              string         `db:"tags"`
	ProcessingError   string         `db:"processing_error"`
	DownloadCount     int            `db:"download_count"`
	QRGenerationCount int            `db:"qr_generation_count"`
	LastAccessedAt    sql.NullTime   `db:"last_accessed_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (row documentRow) toDocument() Document {
	doc := Document{
		ID:                row.ID,
		UserID:            row.UserID,
		FileName:          row.FileName,
		StorageKey:        row.StorageKey,
		MimeType:          row.MimeType,
		SizeBytes:         row.SizeBytes,
		AccessToken:       row.AccessToken,
		Status:            Status(row.Status),
		ProcessingError:   row.ProcessingError,
		DownloadCount:     row.DownloadCount,
		QRGenerationCount: row.QRGenerationCount,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		Tags:              decodeTags(row.Tags),
	}
	if row.OCRText.Valid {
		v := row.OCRText.String
		doc.OCRText = &v
	}
	if row.Summary.Valid {
		v := row.Summary.String
		doc.Summary = &v
	}
	if row.LastAccessedAt.Valid {
		v := row.LastAccessedAt.Time
		doc.LastAccessedAt = &v
	}
	return doc
}

// Create inserts a new document.
func (r *SQLRepo) Create(ctx context.Context, doc Document) error {
	tags, err := encodeTags(doc.Tags)
	if err != nil {
		return err
	}
	status := doc.Status
	if status == "" {
		status = StatusUploaded
	}
	query := r.DB.Rebind(`
INSERT INTO documents (
    id, user_id, file_name, storage_key, mime_type, size_bytes, access_token, status,
    tags, processing_error, download_count, qr_generation_count, search_name, search_body, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, 0, ?, ?, ?, ?)`)
	_, err = r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.StorageKey,
		doc.MimeType,
		doc.SizeBytes,
		doc.AccessToken,
		string(status),
		tags,
		searchName(doc.FileName),
		searchBody(derefString(doc.Summary), doc.Tags, derefString(doc.OCRText)),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID fetches a document by id.
func (r *SQLRepo) GetByID(ctx context.Context, id string) (Document, error) {
	return r.getOne(ctx, "id", id)
}

// GetByAccessToken fetches the document behind a share token.
func (r *SQLRepo) GetByAccessToken(ctx context.Context, token string) (Document, error) {
	return r.getOne(ctx, "access_token", token)
}

func (r *SQLRepo) getOne(ctx context.Context, column, value string) (Document, error) {
	query := r.DB.Rebind(`SELECT ` + documentColumns + ` FROM documents WHERE ` + column + ` = ? LIMIT 1`)
	var row documentRow
	if err := r.DB.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return row.toDocument(), nil
}

// ListByUser lists a user's documents newest-first.
func (r *SQLRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	limit, offset = clampPage(limit, offset)
	query := r.DB.Rebind(`SELECT ` + documentColumns + `
FROM documents
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`)
	return r.selectDocs(ctx, query, userID, limit, offset)
}

// ListAll lists every document newest-first with the total count.
func (r *SQLRepo) ListAll(ctx context.Context, limit, offset int) ([]Document, int, error) {
	return r.Search(ctx, SearchQuery{Limit: limit, Offset: offset})
}

// Search matches documents containing every term in the file name, summary,
// tags or extracted text.
func (r *SQLRepo) Search(ctx context.Context, q SearchQuery) ([]Document, int, error) {
	limit, offset := clampPage(q.Limit, q.Offset)
	where, args := searchWhere(q)

	var total int
	if err := r.DB.GetContext(ctx, &total, r.DB.Rebind(`SELECT COUNT(*) FROM documents`+where), args...); err != nil {
		return nil, 0, err
	}
	query := r.DB.Rebind(`SELECT ` + documentColumns + `
FROM documents` + where + `
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`)
	docs, err := r.selectDocs(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// CountByUser counts a user's documents.
func (r *SQLRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, r.DB.Rebind(`SELECT COUNT(*) FROM documents WHERE user_id = ?`), userID)
	return n, err
}

// MarkProcessing moves a non-terminal document to processing.
func (r *SQLRepo) MarkProcessing(ctx context.Context, id string, at time.Time) error {
	query := r.DB.Rebind(`
UPDATE documents
SET status = ?, updated_at = ?
WHERE id = ? AND status IN (?, ?)`)
	res, err := r.DB.ExecContext(ctx, query, string(StatusProcessing), at, id, string(StatusUploaded), string(StatusProcessing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// Finalize writes the terminal outcome in one statement.
func (r *SQLRepo) Finalize(ctx context.Context, id string, out Outcome) error {
	tags, err := encodeTags(out.Tags)
	if err != nil {
		return err
	}
	query := r.DB.Rebind(`
UPDATE documents
SET status = ?, ocr_text = ?, summary = ?, tags = ?, processing_error = ?, search_body = ?, updated_at = ?
WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, string(out.Status), out.OCRText, out.Summary, tags, out.Error,
		searchBody(out.Summary, out.Tags, out.OCRText), out.At, id)
	return affectedOne(res, err)
}

// RecordDownload bumps the download counter and access time.
func (r *SQLRepo) RecordDownload(ctx context.Context, id string, at time.Time) error {
	query := r.DB.Rebind(`
UPDATE documents
SET download_count = download_count + 1, last_accessed_at = ?
WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, at, id)
	return affectedOne(res, err)
}

// RecordQRGeneration bumps the QR counter.
func (r *SQLRepo) RecordQRGeneration(ctx context.Context, id string, at time.Time) error {
	query := r.DB.Rebind(`
UPDATE documents
SET qr_generation_count = qr_generation_count + 1, updated_at = ?
WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, at, id)
	return affectedOne(res, err)
}

// Delete removes a document row.
func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM documents WHERE id = ?`), id)
	return affectedOne(res, err)
}

func (r *SQLRepo) selectDocs(ctx context.Context, query string, args ...any) ([]Document, error) {
	var rows []documentRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDocument())
	}
	return out, nil
}

func searchWhere(q SearchQuery) (string, []any) {
	var conds []string
	var args []any
	if q.OwnerID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, q.OwnerID)
	}
	for _, term := range q.Terms {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		conds = append(conds, `(search_name LIKE ? ESCAPE '\' OR search_body LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decodeTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Repo = (*SQLRepo)(nil)
