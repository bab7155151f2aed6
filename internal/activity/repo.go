package activity

import "context"

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Repo persists activity entries.
type Repo interface {
	Insert(ctx context.Context, entry Entry) error
	// List returns one page of matching entries, newest first, plus the total match count.
	List(ctx context.Context, f Filter) ([]Entry, int, error)
	CountByAction(ctx context.Context, userID string) (map[Action]int, error)
	CountForDocument(ctx context.Context, userID, documentID string, action Action) (int, error)
}

func normalizePage(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
