package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct {
	MemoryRepo
	panicOnInsert bool
}

func (f *failingRepo) Insert(ctx context.Context, entry Entry) error {
	if f.panicOnInsert {
		panic("driver exploded")
	}
	return errors.New("db down")
}

type docCounter int

func (d docCounter) CountByUser(ctx context.Context, userID string) (int, error) {
	return int(d), nil
}

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestLogActivityStoresEntry(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	svc.Now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	svc.LogActivity(context.Background(), Record{
		UserID:     "u1",
		DocumentID: "doc-1",
		Action:     ActionUpload,
		Details:    map[string]any{"fileName": "a.pdf"},
		IPAddress:  "10.0.0.1",
		UserAgent:  "curl",
	})

	items, total, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	e := items[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ActionUpload, e.Action)
	require.NotNil(t, e.DocumentID)
	assert.Equal(t, "doc-1", *e.DocumentID)
	assert.Equal(t, "a.pdf", e.Details["fileName"])
	assert.Equal(t, "10.0.0.1", e.IPAddress)
}

func TestLogActivityWithoutDocument(t *testing.T) {
	repo := NewMemoryRepo()
	NewService(repo, nil).LogActivity(context.Background(), Record{UserID: "u1", Action: ActionSearch})

	items, _, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].DocumentID)
}

func TestLogActivitySwallowsErrors(t *testing.T) {
	svc := NewService(&failingRepo{}, nil)
	assert.NotPanics(t, func() {
		svc.LogActivity(context.Background(), Record{UserID: "u1", Action: ActionDownload})
	})

	svc = NewService(&failingRepo{panicOnInsert: true}, nil)
	assert.NotPanics(t, func() {
		svc.LogActivity(context.Background(), Record{UserID: "u1", Action: ActionDownload})
	})

	var nilSvc *Service
	assert.NotPanics(t, func() {
		nilSvc.LogActivity(context.Background(), Record{UserID: "u1", Action: ActionDownload})
	})
}

func TestLogActivitySurvivesCanceledRequest(t *testing.T) {
	repo := NewMemoryRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewService(repo, nil).LogActivity(ctx, Record{UserID: "u1", Action: ActionView})

	_, total, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestListScopesNonAdminToCaller(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	svc.LogActivity(context.Background(), Record{UserID: "u1", Action: ActionUpload})
	svc.LogActivity(context.Background(), Record{UserID: "u2", Action: ActionUpload})

	items, total, err := svc.List(context.Background(), "u1", false, Filter{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "u1", items[0].UserID)

	_, total, err = svc.List(context.Background(), "admin", true, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, _, err = svc.List(context.Background(), "admin", true, Filter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u2", items[0].UserID)
}

func TestListRejectsBadFilter(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	_, _, err := svc.List(context.Background(), "u1", false, Filter{Action: "explode"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, _, err = svc.List(context.Background(), "u1", false, Filter{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestListPagesNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	svc.Now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, a := range []Action{ActionUpload, ActionView, ActionDownload} {
		svc.LogActivity(context.Background(), Record{UserID: "u1", Action: a})
	}

	items, total, err := svc.List(context.Background(), "u1", false, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, ActionDownload, items[0].Action)
	assert.Equal(t, ActionView, items[1].Action)

	items, _, err = svc.List(context.Background(), "u1", false, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ActionUpload, items[0].Action)
}

func TestStats(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, docCounter(3))
	for _, a := range []Action{ActionUpload, ActionUpload, ActionSearch} {
		svc.LogActivity(context.Background(), Record{UserID: "u1", Action: a})
	}
	svc.LogActivity(context.Background(), Record{UserID: "u2", Action: ActionUpload})

	stats, err := svc.Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Actions[ActionUpload])
	assert.Equal(t, 1, stats.Actions[ActionSearch])
	assert.Equal(t, 0, stats.Actions[ActionDelete])
	assert.Equal(t, 3, stats.TotalActions)
	assert.Equal(t, 3, stats.TotalDocuments)
}

func TestDownloadCount(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	svc.LogActivity(context.Background(), Record{UserID: "u1", DocumentID: "d1", Action: ActionDownload})
	svc.LogActivity(context.Background(), Record{UserID: "u1", DocumentID: "d1", Action: ActionDownload})
	svc.LogActivity(context.Background(), Record{UserID: "u1", DocumentID: "d1", Action: ActionView})
	svc.LogActivity(context.Background(), Record{UserID: "u2", DocumentID: "d1", Action: ActionDownload})

	n, err := svc.DownloadCount(context.Background(), "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.DownloadCount(context.Background(), "", "d1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
