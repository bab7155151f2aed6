package documents

import (
	"context"
	"time"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	GetByAccessToken(ctx context.Context, token string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	ListAll(ctx context.Context, limit, offset int) ([]Document, int, error)
	Search(ctx context.Context, q SearchQuery) ([]Document, int, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// MarkProcessing moves an uploaded document to processing.
	MarkProcessing(ctx context.Context, id string, at time.Time) error
	// Finalize writes the terminal outcome in one update.
	Finalize(ctx context.Context, id string, out Outcome) error
	RecordDownload(ctx context.Context, id string, at time.Time) error
	RecordQRGeneration(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
