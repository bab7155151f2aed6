package activity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*SQLRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewSQLRepo(sqlx.NewDb(mockDB, "pgx")), mock
}

func TestSQLRepoInsertEncodesDetails(t *testing.T) {
	repo, mock := newMockRepo(t)
	docID := "doc-1"
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO activity_logs \(id, user_id, document_id, action, details, ip_address, user_agent, created_at\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`).
		WithArgs("e1", "u1", docID, "download", `{"via":"token"}`, "127.0.0.1", "ua", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), Entry{
		ID:         "e1",
		UserID:     "u1",
		DocumentID: &docID,
		Action:     ActionDownload,
		Details:    map[string]any{"via": "token"},
		IPAddress:  "127.0.0.1",
		UserAgent:  "ua",
		CreatedAt:  now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepoInsertWithoutDocument(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO activity_logs").
		WithArgs("e2", "u1", nil, "search", "{}", "", "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), Entry{ID: "e2", UserID: "u1", Action: ActionSearch, CreatedAt: now}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepoListBuildsFilter(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM activity_logs WHERE user_id = \$1 AND action = \$2`).
		WithArgs("u1", "upload").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`FROM activity_logs WHERE user_id = \$1 AND action = \$2\s+ORDER BY created_at DESC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs("u1", "upload", 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "document_id", "action", "details", "ip_address", "user_agent", "created_at"}).
			AddRow("e1", "u1", "doc-1", "upload", `{"fileName":"a.pdf"}`, "", "", now).
			AddRow("e2", "u1", nil, "upload", "{}", "", "", now))

	items, total, err := repo.List(context.Background(), Filter{UserID: "u1", Action: ActionUpload, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].DocumentID)
	assert.Equal(t, "doc-1", *items[0].DocumentID)
	assert.Equal(t, "a.pdf", items[0].Details["fileName"])
	assert.Nil(t, items[1].DocumentID)
	assert.Nil(t, items[1].Details)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepoCountByAction(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT action, COUNT\(\*\) AS n\s+FROM activity_logs\s+WHERE user_id = \$1\s+GROUP BY action`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"action", "n"}).AddRow("upload", 4).AddRow("download", 1))

	counts, err := repo.CountByAction(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, map[Action]int{ActionUpload: 4, ActionDownload: 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepoCountForDocument(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`WHERE user_id = \$1 AND document_id = \$2 AND action = \$3`).
		WithArgs("u1", "d1", "download").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountForDocument(context.Background(), "u1", "d1", ActionDownload)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
