package activity

import "time"

// Action is the kind of user action recorded in the activity log.
type Action string

const (
	ActionUpload     Action = "upload"
	ActionDownload   Action = "download"
	ActionView       Action = "view"
	ActionQRGenerate Action = "qr_generate"
	ActionSearch     Action = "search"
	ActionEnrich     Action = "enrich"
	ActionDelete     Action = "delete"
)

// Actions lists every known action in display order.
func Actions() []Action {
	return []Action{
		ActionUpload,
		ActionDownload,
		ActionView,
		ActionQRGenerate,
		ActionSearch,
		ActionEnrich,
		ActionDelete,
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// Entry is one persisted activity log row.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	DocumentID *string        `json:"documentId,omitempty"`
	Action     Action         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Record is what callers hand to LogActivity.
type Record struct {
	UserID     string
	DocumentID string
	Action     Action
	Details    map[string]any
	IPAddress  string
	UserAgent  string
}

// Filter narrows a log listing. Zero values mean "any".
type Filter struct {
	UserID string
	Action Action
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Stats summarizes one user's activity.
type Stats struct {
	Actions        map[Action]int `json:"actions"`
	TotalActions   int            `json:"totalActions"`
	TotalDocuments int            `json:"totalDocuments"`
}
