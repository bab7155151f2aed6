package documents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqr-backend/internal/activity"
	"docqr-backend/internal/shared/metrics"
	"docqr-backend/internal/shared/qr"
	"docqr-backend/internal/shared/storage/object"
	"docqr-backend/internal/shared/telemetry"
	"docqr-backend/internal/shared/util"
)

// DefaultMaxUploadBytes caps uploads when the service is not configured.
const DefaultMaxUploadBytes int64 = 50 << 20

const sharedPath = "/api/shared/"

// Dispatcher hands a stored document to the processing pipeline without
// waiting for it to run.
type Dispatcher interface {
	Enqueue(ctx context.Context, documentID string) error
}

// Auditor is the activity log as seen by documents.
type Auditor interface {
	LogActivity(ctx context.Context, rec activity.Record)
	DownloadCount(ctx context.Context, userID, documentID string) (int, error)
}

// Service contains business logic for documents.
type Service struct {
	Store          object.ObjectStore
	Repo           Repo
	Activity       Auditor
	Dispatcher     Dispatcher
	QR             qr.Renderer
	PublicBaseURL  string
	MaxUploadBytes int64
	Now            func() time.Time
}

// Upload is one file handed to Ingest.
type Upload struct {
	FileName string
	MimeType string
	// Size is the client-declared size; 0 when unknown.
	Size int64
	Body io.Reader
}

// Ingested is what the caller gets back from a successful upload.
type Ingested struct {
	Document   Document
	AccessLink string
	QRCode     string
}

// Download is an open file plus the document it belongs to. Body must be closed.
type Download struct {
	Document Document
	Body     io.ReadCloser
}

// SearchHit is one search result with the caller's own download count.
type SearchHit struct {
	Document        Document
	UserAccessCount int
}

// SearchPage is one page of search results.
type SearchPage struct {
	Query    string
	Hits     []SearchHit
	Total    int
	Page     int
	PageSize int
}

// Ingest validates and stores an upload, records it, and queues it for
// processing. Only validation failures and a saturated queue are reported to
// the caller; processing happens after Ingest returns.
func (s *Service) Ingest(ctx context.Context, actor Actor, up Upload) (Ingested, error) {
	if actor.UserID == "" {
		return Ingested{}, &ValidationError{Field: "owner", Reason: "is required"}
	}
	fileName, err := util.DisplayFileName(up.FileName)
	if err != nil {
		return Ingested{}, &ValidationError{Field: "file", Reason: "invalid file name"}
	}
	if up.Body == nil {
		return Ingested{}, &ValidationError{Field: "file", Reason: "is required"}
	}
	maxBytes := s.maxUploadBytes()
	if up.Size > maxBytes {
		return Ingested{}, &ValidationError{Field: "file", Reason: reasonTooLarge}
	}

	body := bufio.NewReader(up.Body)
	mimeType := s.resolveMimeType(up.MimeType, body)

	now := s.now()
	doc := Document{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		FileName:    fileName,
		MimeType:    mimeType,
		AccessToken: newAccessToken(),
		Status:      StatusUploaded,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc.StorageKey = object.DocumentKey(actor.UserID, doc.ID, fileName)

	size, err := s.Store.Put(ctx, doc.StorageKey, mimeType, io.LimitReader(body, maxBytes+1))
	if err != nil {
		return Ingested{}, fmt.Errorf("store file: %w", err)
	}
	if size == 0 || size > maxBytes {
		s.removeObject(ctx, doc.StorageKey)
		if size == 0 {
			return Ingested{}, &ValidationError{Field: "file", Reason: "is empty"}
		}
		return Ingested{}, &ValidationError{Field: "file", Reason: reasonTooLarge}
	}
	doc.SizeBytes = size

	if err := s.Repo.Create(ctx, doc); err != nil {
		s.removeObject(ctx, doc.StorageKey)
		return Ingested{}, fmt.Errorf("create document: %w", err)
	}

	// The upload entry must precede anything the worker records for the document.
	s.audit(ctx, actor, doc.ID, activity.ActionUpload, map[string]any{
		"fileName":  doc.FileName,
		"sizeBytes": doc.SizeBytes,
		"mimeType":  doc.MimeType,
	})

	if s.Dispatcher != nil {
		if err := s.Dispatcher.Enqueue(ctx, doc.ID); err != nil {
			if delErr := s.Repo.Delete(context.WithoutCancel(ctx), doc.ID); delErr != nil {
				telemetry.Error("document.rollback_failed", map[string]any{"document_id": doc.ID, "error": delErr.Error()})
			}
			s.removeObject(ctx, doc.StorageKey)
			s.audit(ctx, actor, doc.ID, activity.ActionDelete, map[string]any{
				"fileName":   doc.FileName,
				"rolledBack": true,
				"reason":     "queue_full",
			})
			return Ingested{}, fmt.Errorf("%w: %v", ErrBusy, err)
		}
	}

	metrics.IncDocumentsUploaded()
	telemetry.Info("document.status", map[string]any{
		"document_id":       doc.ID,
		"user_id":           doc.UserID,
		"status":            string(StatusUploaded),
		"status_transition": "->uploaded",
		"size_bytes":        doc.SizeBytes,
		"mime_type":         doc.MimeType,
	})

	link := s.AccessLink(doc)
	return Ingested{Document: doc, AccessLink: link, QRCode: s.renderQR(doc.ID, link)}, nil
}

// Get returns a document the actor may see and records the view.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (Document, error) {
	doc, err := s.authorized(ctx, actor, id)
	if err != nil {
		return Document{}, err
	}
	s.audit(ctx, actor, doc.ID, activity.ActionView, nil)
	return doc, nil
}

// List returns the actor's own documents, newest first.
func (s *Service) List(ctx context.Context, actor Actor, limit, offset int) ([]Document, error) {
	if actor.UserID == "" {
		return nil, &ValidationError{Field: "owner", Reason: "is required"}
	}
	return s.Repo.ListByUser(ctx, actor.UserID, limit, offset)
}

// ListAll returns every document. Admin only.
func (s *Service) ListAll(ctx context.Context, actor Actor, limit, offset int) ([]Document, int, error) {
	if !actor.Admin {
		return nil, 0, ErrForbidden
	}
	return s.Repo.ListAll(ctx, limit, offset)
}

// DownloadByID opens a document's file for its owner or an admin.
func (s *Service) DownloadByID(ctx context.Context, actor Actor, id string) (Download, error) {
	doc, err := s.authorized(ctx, actor, id)
	if err != nil {
		return Download{}, err
	}
	return s.download(ctx, actor, doc, "id")
}

// DownloadByToken opens a document's file for anyone holding its access token.
func (s *Service) DownloadByToken(ctx context.Context, actor Actor, token string) (Download, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Download{}, ErrNotFound
	}
	doc, err := s.Repo.GetByAccessToken(ctx, token)
	if err != nil {
		return Download{}, err
	}
	return s.download(ctx, actor, doc, "token")
}

// download opens the file before touching counters so a missing file never
// counts as a download.
func (s *Service) download(ctx context.Context, actor Actor, doc Document, via string) (Download, error) {
	body, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("document.file_missing", map[string]any{
				"document_id": doc.ID,
				"storage_key": doc.StorageKey,
			})
			return Download{}, ErrFileNotFound
		}
		return Download{}, fmt.Errorf("open file: %w", err)
	}

	now := s.now()
	if err := s.Repo.RecordDownload(ctx, doc.ID, now); err != nil {
		telemetry.Warn("document.counter_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
	} else {
		doc.DownloadCount++
		doc.LastAccessedAt = &now
	}
	metrics.IncDownloads()
	s.audit(ctx, actor, doc.ID, activity.ActionDownload, map[string]any{"via": via, "fileName": doc.FileName})
	return Download{Document: doc, Body: body}, nil
}

// GenerateQR renders the QR code of a document's access link and counts it.
func (s *Service) GenerateQR(ctx context.Context, actor Actor, id string) (Ingested, error) {
	doc, err := s.authorized(ctx, actor, id)
	if err != nil {
		return Ingested{}, err
	}
	if s.QR == nil {
		return Ingested{}, errors.New("qr renderer not configured")
	}
	link := s.AccessLink(doc)
	code, err := s.QR.PNGBase64(link)
	if err != nil {
		return Ingested{}, fmt.Errorf("render qr: %w", err)
	}
	if err := s.Repo.RecordQRGeneration(ctx, doc.ID, s.now()); err != nil {
		return Ingested{}, err
	}
	doc.QRGenerationCount++
	s.audit(ctx, actor, doc.ID, activity.ActionQRGenerate, nil)
	return Ingested{Document: doc, AccessLink: link, QRCode: code}, nil
}

// Delete removes the stored file and then the record.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	doc, err := s.authorized(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, object.ErrNotFound) {
		return fmt.Errorf("delete file: %w", err)
	}
	if err := s.Repo.Delete(ctx, doc.ID); err != nil {
		return err
	}
	s.audit(ctx, actor, doc.ID, activity.ActionDelete, map[string]any{"fileName": doc.FileName})
	return nil
}

// Search finds documents containing every whitespace-separated term. Admins
// search everything; other callers only their own documents.
func (s *Service) Search(ctx context.Context, actor Actor, query string, page, pageSize int) (SearchPage, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return SearchPage{}, &ValidationError{Field: "q", Reason: "is required"}
	}
	if page < 1 {
		page = 1
	}
	pageSize, _ = clampPage(pageSize, 0)

	q := SearchQuery{Terms: terms, Limit: pageSize, Offset: (page - 1) * pageSize}
	if !actor.Admin {
		q.OwnerID = actor.UserID
	}
	docs, total, err := s.Repo.Search(ctx, q)
	if err != nil {
		return SearchPage{}, err
	}

	hits := make([]SearchHit, 0, len(docs))
	for _, d := range docs {
		hit := SearchHit{Document: d}
		if s.Activity != nil {
			if n, err := s.Activity.DownloadCount(ctx, actor.UserID, d.ID); err == nil {
				hit.UserAccessCount = n
			}
		}
		hits = append(hits, hit)
	}
	s.audit(ctx, actor, "", activity.ActionSearch, map[string]any{"query": query, "results": total})
	return SearchPage{Query: query, Hits: hits, Total: total, Page: page, PageSize: pageSize}, nil
}

// CountByUser reports how many documents userID owns.
func (s *Service) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.Repo.CountByUser(ctx, userID)
}

// AccessLink is the public URL that serves doc by its access token.
func (s *Service) AccessLink(doc Document) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + sharedPath + doc.AccessToken
}

func (s *Service) authorized(ctx context.Context, actor Actor, id string) (Document, error) {
	if strings.TrimSpace(id) == "" {
		return Document{}, ErrNotFound
	}
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !actor.CanAccess(doc) {
		return Document{}, ErrForbidden
	}
	return doc, nil
}

func (s *Service) audit(ctx context.Context, actor Actor, documentID string, action activity.Action, details map[string]any) {
	if s.Activity == nil {
		return
	}
	s.Activity.LogActivity(ctx, activity.Record{
		UserID:     actor.UserID,
		DocumentID: documentID,
		Action:     action,
		Details:    details,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	})
}

func (s *Service) renderQR(documentID, link string) string {
	if s.QR == nil {
		return ""
	}
	code, err := s.QR.PNGBase64(link)
	if err != nil {
		telemetry.Warn("document.qr_failed", map[string]any{"document_id": documentID, "error": err.Error()})
		return ""
	}
	return code
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Warn("document.cleanup_failed", map[string]any{"storage_key": key, "error": err.Error()})
	}
}

// resolveMimeType keeps the declared type unless it is missing or generic, in
// which case the leading bytes are sniffed.
func (s *Service) resolveMimeType(declared string, body *bufio.Reader) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	head, _ := body.Peek(512)
	if len(head) == 0 {
		return "application/octet-stream"
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mt
}

func (s *Service) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// newAccessToken returns 122 random bits as 32 hex characters.
func newAccessToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
