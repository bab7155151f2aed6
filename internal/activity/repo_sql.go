package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLRepo stores entries in the activity_logs table. It works against both
// PostgreSQL and SQLite; queries are written with ? and rebound per driver.
type SQLRepo struct {
	DB *sqlx.DB
}

// NewSQLRepo wraps an open connection.
func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{DB: db}
}

type entryRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	DocumentID sql.NullString `db:"document_id"`
	Action     string         `db:"action"`
	Details    string         `db:"details"`
	IPAddress  string         `db:"ip_address"`
	UserAgent  string         `db:"user_agent"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (row entryRow) toEntry() Entry {
	e := Entry{
		ID:        row.ID,
		UserID:    row.UserID,
		Action:    Action(row.Action),
		IPAddress: row.IPAddress,
		UserAgent: row.UserAgent,
		CreatedAt: row.CreatedAt,
	}
	if row.DocumentID.Valid {
		id := row.DocumentID.String
		e.DocumentID = &id
	}
	if row.Details != "" && row.Details != "{}" {
		var details map[string]any
		if err := json.Unmarshal([]byte(row.Details), &details); err == nil {
			e.Details = details
		}
	}
	return e
}

// Insert writes one entry.
func (r *SQLRepo) Insert(ctx context.Context, entry Entry) error {
	details := "{}"
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = string(raw)
	}
	var documentID sql.NullString
	if entry.DocumentID != nil && *entry.DocumentID != "" {
		documentID = sql.NullString{String: *entry.DocumentID, Valid: true}
	}

	query := r.DB.Rebind(`
INSERT INTO activity_logs (id, user_id, document_id, action, details, ip_address, user_agent, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		documentID,
		string(entry.Action),
		details,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	return err
}

// List returns one page of entries, newest first.
func (r *SQLRepo) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	f = normalizePage(f)
	where, args := whereClause(f)

	var total int
	countQuery := r.DB.Rebind("SELECT COUNT(*) FROM activity_logs" + where)
	if err := r.DB.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	listQuery := r.DB.Rebind(`
SELECT id, user_id, document_id, action, details, ip_address, user_agent, created_at
FROM activity_logs` + where + `
ORDER BY created_at DESC
LIMIT ? OFFSET ?`)
	var rows []entryRow
	if err := r.DB.SelectContext(ctx, &rows, listQuery, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntry())
	}
	return out, total, nil
}

// CountByAction counts a user's entries per action.
func (r *SQLRepo) CountByAction(ctx context.Context, userID string) (map[Action]int, error) {
	query := r.DB.Rebind(`
SELECT action, COUNT(*) AS n
FROM activity_logs
WHERE user_id = ?
GROUP BY action`)
	var rows []struct {
		Action string `db:"action"`
		N      int    `db:"n"`
	}
	if err := r.DB.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	out := make(map[Action]int, len(rows))
	for _, row := range rows {
		out[Action(row.Action)] = row.N
	}
	return out, nil
}

// CountForDocument counts a user's entries of one action against a document.
func (r *SQLRepo) CountForDocument(ctx context.Context, userID, documentID string, action Action) (int, error) {
	query := r.DB.Rebind(`
SELECT COUNT(*)
FROM activity_logs
WHERE user_id = ? AND document_id = ? AND action = ?`)
	var n int
	if err := r.DB.GetContext(ctx, &n, query, userID, documentID, string(action)); err != nil {
		return 0, err
	}
	return n, nil
}

func whereClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(f.Action))
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var _ Repo = (*SQLRepo)(nil)
