package processing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"docqr-backend/internal/activity"
	"docqr-backend/internal/documents"
	"docqr-backend/internal/enrich"
	"docqr-backend/internal/extract"
	"docqr-backend/internal/notify"
	"docqr-backend/internal/shared/metrics"
	"docqr-backend/internal/shared/storage/object"
	"docqr-backend/internal/shared/telemetry"
)

// Fixed content written when extraction finds nothing or processing fails.
const (
	NoTextSummary  = "Текст в документе не обнаружен"
	FailureSummary = "Ошибка обработки документа"
)

// NoTextTags marks a document whose extraction yielded no text.
func NoTextTags() []string { return []string{"без-текста"} }

// FailureTags marks a document whose processing failed.
func FailureTags() []string { return []string{"ошибка"} }

const (
	persistTimeout  = 10 * time.Second
	maxErrorMessage = 500
)

// TextExtractor produces raw text from a local file.
type TextExtractor interface {
	ExtractPrimaryText(ctx context.Context, path, mediaType string) (extract.Result, error)
}

// Enricher turns raw text into a summary and tags. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, text string) enrich.Result
}

// Publisher broadcasts processing events to a user's live connections.
type Publisher interface {
	Publish(userID string, ev notify.Event)
}

// ActivityLogger is the audit boundary.
type ActivityLogger interface {
	LogActivity(ctx context.Context, rec activity.Record)
}

// Orchestrator moves one document from uploaded to a terminal state.
type Orchestrator struct {
	Repo      documents.Repo
	Store     object.ObjectStore
	Extractor TextExtractor
	Enricher  Enricher
	Publisher Publisher
	Activity  ActivityLogger
	// WorkDir receives temporary copies of remote objects; empty means os.TempDir.
	WorkDir string
	Now     func() time.Time
}

// Process runs the pipeline for documentID. Every failure after the document
// is loaded ends in the Failed state; the returned error is for the caller's
// logs only.
func (o *Orchestrator) Process(ctx context.Context, documentID string) (err error) {
	startedAt := o.now()
	doc, err := o.Repo.GetByID(ctx, documentID)
	if err != nil {
		telemetry.Error("processing.load_failed", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"document_id": documentID,
			"error":       err.Error(),
		})
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = o.fail(ctx, doc, fmt.Errorf("panic: %v", r), startedAt)
		}
	}()

	if err := o.Repo.MarkProcessing(ctx, doc.ID, startedAt); err != nil {
		if errors.Is(err, documents.ErrInvalidTransition) {
			telemetry.Warn("processing.skipped", map[string]any{
				"request_id":  telemetry.RequestIDFromContext(ctx),
				"document_id": doc.ID,
				"status":      string(doc.Status),
			})
			return err
		}
		return o.fail(ctx, doc, fmt.Errorf("mark processing: %w", err), startedAt)
	}
	metrics.IncProcessingStarted()
	o.logTransition(ctx, doc, documents.StatusProcessing, string(doc.Status)+"->processing", nil)
	o.publish(doc.UserID, notify.Started(doc.ID, doc.FileName, startedAt))

	outcome, details, err := o.run(ctx, doc)
	if err != nil {
		return o.fail(ctx, doc, err, startedAt)
	}

	outcome.At = o.now()
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := o.Repo.Finalize(persistCtx, doc.ID, outcome); err != nil {
		return o.fail(ctx, doc, fmt.Errorf("persist result: %w", err), startedAt)
	}

	duration := durationMs(startedAt, outcome.At)
	metrics.IncProcessingCompleted()
	metrics.ObserveProcessingDurationMs(duration)
	details["duration_ms"] = duration
	o.logTransition(ctx, doc, documents.StatusCompleted, "processing->completed", details)
	o.publish(doc.UserID, notify.Completed(doc.ID, doc.FileName, outcome.Summary, outcome.Tags, outcome.At))
	o.audit(ctx, doc, map[string]any{
		"status":    string(documents.StatusCompleted),
		"method":    details["method"],
		"source":    details["source"],
		"tagsCount": len(outcome.Tags),
	})
	return nil
}

// run does the work between the processing and terminal transitions.
func (o *Orchestrator) run(ctx context.Context, doc documents.Document) (documents.Outcome, map[string]any, error) {
	if o.Store == nil || o.Extractor == nil || o.Enricher == nil {
		return documents.Outcome{}, nil, errors.New("processing dependencies not configured")
	}

	path, cleanup, err := object.Materialize(ctx, o.Store, doc.StorageKey, o.workDir())
	defer cleanup()
	if err != nil {
		return documents.Outcome{}, nil, fmt.Errorf("load file %s: %w", doc.StorageKey, err)
	}

	res, err := o.Extractor.ExtractPrimaryText(ctx, path, doc.MimeType)
	if err != nil {
		return documents.Outcome{}, nil, fmt.Errorf("extract text: %w", err)
	}
	details := map[string]any{"kind": res.Kind.String(), "method": string(res.Method)}

	text := strings.TrimSpace(res.Text)
	if res.Unsupported() || text == "" {
		details["source"] = "no_text"
		return documents.Outcome{
			Status:  documents.StatusCompleted,
			Summary: NoTextSummary,
			Tags:    NoTextTags(),
		}, details, nil
	}

	enriched := o.Enricher.Enrich(ctx, text)
	details["source"] = string(enriched.Source)
	details["text_chars"] = len([]rune(text))
	tags := enriched.Tags
	if tags == nil {
		tags = []string{}
	}
	return documents.Outcome{
		Status:  documents.StatusCompleted,
		OCRText: text,
		Summary: enriched.Summary,
		Tags:    tags,
	}, details, nil
}

// fail writes the Failed marker and tells the owner. A failure of that write
// leaves the document without a terminal state and is logged as critical.
func (o *Orchestrator) fail(ctx context.Context, doc documents.Document, cause error, startedAt time.Time) error {
	msg := sanitizeError(cause)
	at := o.now()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := o.Repo.Finalize(persistCtx, doc.ID, documents.Outcome{
		Status:  documents.StatusFailed,
		Summary: FailureSummary,
		Tags:    FailureTags(),
		Error:   msg,
		At:      at,
	}); err != nil {
		telemetry.Error("processing.finalize_failed", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"document_id": doc.ID,
			"user_id":     doc.UserID,
			"severity":    "critical",
			"cause":       msg,
			"error":       err.Error(),
		})
	}

	duration := durationMs(startedAt, at)
	metrics.IncProcessingFailed()
	metrics.ObserveProcessingDurationMs(duration)
	o.logTransition(ctx, doc, documents.StatusFailed, "processing->failed", map[string]any{
		"duration_ms": duration,
		"error":       msg,
	})
	o.publish(doc.UserID, notify.Failed(doc.ID, doc.FileName, msg, at))
	o.audit(ctx, doc, map[string]any{"status": string(documents.StatusFailed), "error": msg})
	return cause
}

func (o *Orchestrator) publish(userID string, ev notify.Event) {
	if o.Publisher == nil {
		return
	}
	o.Publisher.Publish(userID, ev)
}

func (o *Orchestrator) audit(ctx context.Context, doc documents.Document, details map[string]any) {
	if o.Activity == nil {
		return
	}
	o.Activity.LogActivity(ctx, activity.Record{
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Action:     activity.ActionEnrich,
		Details:    details,
	})
}

func (o *Orchestrator) logTransition(ctx context.Context, doc documents.Document, status documents.Status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"user_id":           doc.UserID,
		"document_id":       doc.ID,
		"status":            string(status),
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if status == documents.StatusFailed {
		telemetry.Warn("document.status", fields)
		return
	}
	telemetry.Info("document.status", fields)
}

func (o *Orchestrator) workDir() string {
	if o.WorkDir != "" {
		return o.WorkDir
	}
	return os.TempDir()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if runes := []rune(msg); len(runes) > maxErrorMessage {
		msg = string(runes[:maxErrorMessage])
	}
	return msg
}
