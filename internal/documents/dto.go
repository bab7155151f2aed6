package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID        string     `json:"documentId"`
	FileName          string     `json:"fileName"`
	MimeType          string     `json:"mimeType"`
	SizeBytes         int64      `json:"sizeBytes"`
	Status            Status     `json:"status"`
	Summary           string     `json:"summary"`
	Tags              []string   `json:"tags"`
	OCRText           string     `json:"ocrText,omitempty"`
	ProcessingError   string     `json:"processingError,omitempty"`
	AccessToken       string     `json:"accessToken"`
	AccessLink        string     `json:"accessLink"`
	QRCode            string     `json:"qrCode,omitempty"`
	DownloadCount     int        `json:"downloadCount"`
	QRGenerationCount int        `json:"qrGenerationCount"`
	LastAccessedAt    *time.Time `json:"lastAccessedAt,omitempty"`
	UploadedAt        time.Time  `json:"uploadedAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (s *Service) toResponse(doc Document, withText bool) DocumentResponse {
	resp := DocumentResponse{
		DocumentID:        doc.ID,
		FileName:          doc.FileName,
		MimeType:          doc.MimeType,
		SizeBytes:         doc.SizeBytes,
		Status:            doc.Status,
		Tags:              doc.Tags,
		ProcessingError:   doc.ProcessingError,
		AccessToken:       doc.AccessToken,
		AccessLink:        s.AccessLink(doc),
		DownloadCount:     doc.DownloadCount,
		QRGenerationCount: doc.QRGenerationCount,
		LastAccessedAt:    doc.LastAccessedAt,
		UploadedAt:        doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if doc.Summary != nil {
		resp.Summary = *doc.Summary
	}
	if withText && doc.OCRText != nil {
		resp.OCRText = *doc.OCRText
	}
	return resp
}

// SearchResultResponse is one search hit.
type SearchResultResponse struct {
	DocumentResponse
	UserAccessCount int `json:"userAccessCount"`
}

// PageResponse wraps a paged listing.
type PageResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}
