package documents

import "time"

// Status is a document's position in the processing state machine.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further automatic transition happens from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is an uploaded file owned by a user.
type Document struct {
	ID                string
	UserID            string
	FileName          string
	StorageKey        string
	MimeType          string
	SizeBytes         int64
	AccessToken       string
	Status            Status
	OCRText           *string
	Summary           *string
	Tags              []string
	ProcessingError   string
	DownloadCount     int
	QRGenerationCount int
	LastAccessedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Outcome is the terminal result written by the processing pipeline in a
// single update.
type Outcome struct {
	Status  Status
	OCRText string
	Summary string
	Tags    []string
	Error   string
	At      time.Time
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	UserID    string
	Admin     bool
	IPAddress string
	UserAgent string
}

// CanAccess reports whether a may read or modify doc.
func (a Actor) CanAccess(doc Document) bool {
	return a.Admin || (a.UserID != "" && a.UserID == doc.UserID)
}

// SearchQuery selects documents by free text.
type SearchQuery struct {
	// OwnerID limits results to one owner; empty searches every document.
	OwnerID string
	Terms   []string
	Limit   int
	Offset  int
}
