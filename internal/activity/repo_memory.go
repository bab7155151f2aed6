package activity

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps entries in process memory.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

// Insert appends an entry.
func (r *MemoryRepo) Insert(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// List filters, sorts newest-first and pages.
func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f = normalizePage(f)

	r.mu.RLock()
	matched := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Entry{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

// CountByAction counts a user's entries per action.
func (r *MemoryRepo) CountByAction(ctx context.Context, userID string) (map[Action]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Action]int)
	for _, e := range r.entries {
		if e.UserID == userID {
			out[e.Action]++
		}
	}
	return out, nil
}

// CountForDocument counts a user's entries of one action against a document.
func (r *MemoryRepo) CountForDocument(ctx context.Context, userID, documentID string, action Action) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.UserID == userID && e.Action == action && e.DocumentID != nil && *e.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func matches(e Entry, f Filter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

var _ Repo = (*MemoryRepo)(nil)
