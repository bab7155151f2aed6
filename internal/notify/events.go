package notify

import "time"

// Event names sent to clients.
const (
	EventStarted   = "DocumentProcessingStarted"
	EventCompleted = "DocumentProcessingCompleted"
	EventFailed    = "DocumentProcessingFailed"
)

// Status values carried in a Notification.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Notification is the payload of a processing event: a point-in-time
// projection of a document's processing state.
type Notification struct {
	DocumentID string    `json:"documentId"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Summary    string    `json:"summary,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event is the envelope written to a connection.
type Event struct {
	Name string       `json:"event"`
	Data Notification `json:"data"`
}

// Started builds the event published before extraction begins.
func Started(documentID, filename string, at time.Time) Event {
	return Event{Name: EventStarted, Data: Notification{
		DocumentID: documentID,
		Filename:   filename,
		Status:     StatusProcessing,
		Timestamp:  at,
	}}
}

// Completed builds the success event.
func Completed(documentID, filename, summary string, tags []string, at time.Time) Event {
	if tags == nil {
		tags = []string{}
	}
	return Event{Name: EventCompleted, Data: Notification{
		DocumentID: documentID,
		Filename:   filename,
		Status:     StatusCompleted,
		Summary:    summary,
		Tags:       tags,
		Timestamp:  at,
	}}
}

// Failed builds the failure event.
func Failed(documentID, filename, errMsg string, at time.Time) Event {
	return Event{Name: EventFailed, Data: Notification{
		DocumentID: documentID,
		Filename:   filename,
		Status:     StatusFailed,
		Error:      errMsg,
		Timestamp:  at,
	}}
}
