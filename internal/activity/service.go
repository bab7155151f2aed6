package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docqr-backend/internal/shared/telemetry"
)

const defaultWriteTimeout = 3 * time.Second

// DocumentCounter reports how many documents a user owns.
type DocumentCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Service is the audit boundary. Writes never fail the caller.
type Service struct {
	Repo         Repo
	Documents    DocumentCounter
	Now          func() time.Time
	WriteTimeout time.Duration
}

// NewService builds a service over repo.
func NewService(repo Repo, docs DocumentCounter) *Service {
	return &Service{Repo: repo, Documents: docs}
}

// LogActivity records one action. Any error, including a panic in the
// repository, is logged and swallowed. The write outlives cancellation of
// the calling request.
func (s *Service) LogActivity(ctx context.Context, rec Record) {
	if s == nil || s.Repo == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			telemetry.Warn("activity.log_failed", map[string]any{
				"action":      string(rec.Action),
				"user_id":     rec.UserID,
				"document_id": rec.DocumentID,
				"error":       fmt.Sprint(r),
			})
		}
	}()

	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	entry := Entry{
		ID:        uuid.NewString(),
		UserID:    rec.UserID,
		Action:    rec.Action,
		Details:   rec.Details,
		IPAddress: rec.IPAddress,
		UserAgent: rec.UserAgent,
		CreatedAt: s.now(),
	}
	if rec.DocumentID != "" {
		id := rec.DocumentID
		entry.DocumentID = &id
	}
	if err := s.Repo.Insert(writeCtx, entry); err != nil {
		telemetry.Warn("activity.log_failed", map[string]any{
			"action":      string(rec.Action),
			"user_id":     rec.UserID,
			"document_id": rec.DocumentID,
			"error":       err.Error(),
		})
	}
}

// List returns a page of entries. Non-admin callers only ever see their own.
func (s *Service) List(ctx context.Context, callerID string, admin bool, f Filter) ([]Entry, int, error) {
	if f.Action != "" && !f.Action.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown action %q", ErrInvalidFilter, f.Action)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, 0, fmt.Errorf("%w: from is after to", ErrInvalidFilter)
	}
	if !admin {
		f.UserID = callerID
	}
	return s.Repo.List(ctx, f)
}

// Stats summarizes a user's activity.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	counts, err := s.Repo.CountByAction(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Actions: make(map[Action]int, len(Actions()))}
	for _, a := range Actions() {
		out.Actions[a] = counts[a]
		out.TotalActions += counts[a]
	}
	if s.Documents != nil {
		n, err := s.Documents.CountByUser(ctx, userID)
		if err != nil {
			return Stats{}, err
		}
		out.TotalDocuments = n
	}
	return out, nil
}

// DownloadCount is how many times userID downloaded documentID.
func (s *Service) DownloadCount(ctx context.Context, userID, documentID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return s.Repo.CountForDocument(ctx, userID, documentID, ActionDownload)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
