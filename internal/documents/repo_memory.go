package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	data    map[string]Document // id -> document
	byToken map[string]string   // access token -> id
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data:    make(map[string]Document),
		byToken: make(map[string]string),
	}
}

// Create stores a new document. Ids and access tokens must be unique.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[doc.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byToken[doc.AccessToken]; ok {
		return ErrDuplicate
	}
	r.data[doc.ID] = clone(doc)
	r.byToken[doc.AccessToken] = doc.ID
	return nil
}

// GetByID returns a document by id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return clone(doc), nil
}

// GetByAccessToken returns the document behind a share token.
func (r *MemoryRepo) GetByAccessToken(ctx context.Context, token string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	if !ok {
		return Document{}, ErrNotFound
	}
	return clone(r.data[id]), nil
}

// ListByUser returns a user's documents, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, _ := r.page(func(d Document) bool { return d.UserID == userID }, limit, offset)
	return docs, nil
}

// ListAll returns every document, newest first.
func (r *MemoryRepo) ListAll(ctx context.Context, limit, offset int) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	docs, total := r.page(func(Document) bool { return true }, limit, offset)
	return docs, total, nil
}

// Search matches documents containing every term.
func (r *MemoryRepo) Search(ctx context.Context, q SearchQuery) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	terms := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		terms = append(terms, strings.ToLower(t))
	}
	docs, total := r.page(func(d Document) bool {
		if q.OwnerID != "" && d.UserID != q.OwnerID {
			return false
		}
		return matchesAll(d, terms)
	}, q.Limit, q.Offset)
	return docs, total, nil
}

// CountByUser counts a user's documents.
func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.data {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

// MarkProcessing moves a non-terminal document to processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(d *Document) error {
		if d.Status.Terminal() {
			return ErrInvalidTransition
		}
		d.Status = StatusProcessing
		d.UpdatedAt = at
		return nil
	})
}

// Finalize writes the terminal outcome.
func (r *MemoryRepo) Finalize(ctx context.Context, id string, out Outcome) error {
	return r.update(ctx, id, func(d *Document) error {
		applyOutcome(d, out)
		return nil
	})
}

// RecordDownload bumps the download counter and access time.
func (r *MemoryRepo) RecordDownload(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(d *Document) error {
		d.DownloadCount++
		d.LastAccessedAt = &at
		return nil
	})
}

// RecordQRGeneration bumps the QR counter.
func (r *MemoryRepo) RecordQRGeneration(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(d *Document) error {
		d.QRGenerationCount++
		d.UpdatedAt = at
		return nil
	})
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byToken, doc.AccessToken)
	delete(r.data, id)
	return nil
}

func (r *MemoryRepo) update(ctx context.Context, id string, fn func(*Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&doc); err != nil {
		return err
	}
	r.data[id] = doc
	return nil
}

func (r *MemoryRepo) page(keep func(Document) bool, limit, offset int) ([]Document, int) {
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	matched := make([]Document, 0)
	for _, d := range r.data {
		if keep(d) {
			matched = append(matched, clone(d))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []Document{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total
}

func applyOutcome(d *Document, out Outcome) {
	d.Status = out.Status
	text := out.OCRText
	summary := out.Summary
	d.OCRText = &text
	d.Summary = &summary
	d.Tags = append([]string{}, out.Tags...)
	d.ProcessingError = out.Error
	d.UpdatedAt = out.At
}

func matchesAll(d Document, lowerTerms []string) bool {
	var summary, ocr string
	if d.Summary != nil {
		summary = *d.Summary
	}
	if d.OCRText != nil {
		ocr = *d.OCRText
	}
	name := searchName(d.FileName)
	body := searchBody(summary, d.Tags, ocr)
	for _, t := range lowerTerms {
		if !strings.Contains(name, t) && !strings.Contains(body, t) {
			return false
		}
	}
	return true
}

// searchName and searchBody build the Unicode-lowercased haystacks both repos
// match terms against. The SQL repo stores them in search_name/search_body
// because SQLite's LOWER and LIKE only fold ASCII.
func searchName(fileName string) string {
	return strings.ToLower(fileName)
}

func searchBody(summary string, tags []string, ocrText string) string {
	return strings.ToLower(summary + "\n" + strings.Join(tags, " ") + "\n" + ocrText)
}

func clone(d Document) Document {
	if d.Tags != nil {
		d.Tags = append([]string{}, d.Tags...)
	}
	if d.OCRText != nil {
		v := *d.OCRText
		d.OCRText = &v
	}
	if d.Summary != nil {
		v := *d.Summary
		d.Summary = &v
	}
	if d.LastAccessedAt != nil {
		v := *d.LastAccessedAt
		d.LastAccessedAt = &v
	}
	return d
}

var _ Repo = (*MemoryRepo)(nil)
