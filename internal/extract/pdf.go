package extract

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFTextLayer reads embedded text with ledongthuc/pdf.
type PDFTextLayer struct{}

// FirstPageText returns the plain text of page 1. The parser panics on some
// malformed files; that is reported as an error.
func (PDFTextLayer) FirstPageText(ctx context.Context, pdfPath string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	if r.NumPage() < 1 {
		return "", nil
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
