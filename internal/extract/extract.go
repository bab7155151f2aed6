package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"docqr-backend/internal/shared/telemetry"
)

// DefaultDPI is the rasterization resolution for scanned PDFs.
const DefaultDPI = 300

// ErrUnsupportedType marks a declared media type with no extraction strategy.
var ErrUnsupportedType = errors.New("unsupported media type")

// ExtractionError reports an input file that could not be read at all.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Method records which path produced the text.
type Method string

const (
	MethodNone      Method = "none"
	MethodImageOCR  Method = "image_ocr"
	MethodTextLayer Method = "pdf_text_layer"
	MethodRasterOCR Method = "pdf_raster_ocr"
)

// Result is the outcome of one extraction. Text is trimmed and may be empty.
type Result struct {
	Text   string
	Kind   Kind
	Method Method
}

// Unsupported reports whether the declared media type had no strategy.
func (r Result) Unsupported() bool { return r.Kind == KindUnsupported }

// OCREngine recognizes text in a single image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TextLayer reads embedded text from the first page of a PDF.
type TextLayer interface {
	FirstPageText(ctx context.Context, pdfPath string) (string, error)
}

// Rasterizer renders the first page of a PDF into outDir and returns the image path.
type Rasterizer interface {
	RenderFirstPage(ctx context.Context, pdfPath, outDir string, dpi int) (string, error)
}

// Extractor produces raw text from a stored document.
type Extractor struct {
	OCR        OCREngine
	TextLayer  TextLayer
	Rasterizer Rasterizer
	DPI        int
	WorkDir    string
}

type strategy func(e *Extractor, ctx context.Context, path string) Result

// strategies is the closed set of supported kinds. Adding a strategy means
// adding a Kind and an entry here.
var strategies = map[Kind]strategy{
	KindImage: (*Extractor).extractImage,
	KindPDF:   (*Extractor).extractPDF,
}

// ExtractPrimaryText returns the text of the document at path. Engine failures
// are logged and yield empty text; only an unreadable input file is an error.
// Unknown media types return a Result with KindUnsupported.
func (e *Extractor) ExtractPrimaryText(ctx context.Context, path, mediaType string) (res Result, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return Result{}, &ExtractionError{Path: path, Err: statErr}
	}

	kind := Classify(mediaType)
	run, ok := strategies[kind]
	if !ok {
		telemetry.Info("extract.unsupported", map[string]any{
			"media_type": mediaType,
			"error":      ErrUnsupportedType.Error(),
		})
		return Result{Kind: KindUnsupported, Method: MethodNone}, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Warn("extract.engine_panic", map[string]any{
				"kind":  kind.String(),
				"error": fmt.Sprint(rec),
			})
			res = Result{Kind: kind, Method: MethodNone}
			err = nil
		}
	}()

	res = run(e, ctx, path)
	res.Kind = kind
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) Result {
	return Result{Text: e.recognize(ctx, path), Method: MethodImageOCR}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) Result {
	if e.TextLayer != nil {
		text, err := e.TextLayer.FirstPageText(ctx, path)
		if err != nil {
			logEngineError("pdf_text_layer", err)
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return Result{Text: trimmed, Method: MethodTextLayer}
		}
	}
	return Result{Text: e.rasterizeAndRecognize(ctx, path), Method: MethodRasterOCR}
}

func (e *Extractor) rasterizeAndRecognize(ctx context.Context, pdfPath string) string {
	if e.Rasterizer == nil {
		logEngineError("pdf_raster", errors.New("no rasterizer configured"))
		return ""
	}
	dir, err := os.MkdirTemp(e.WorkDir, "render-*")
	if err != nil {
		logEngineError("pdf_raster", err)
		return ""
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logEngineError("pdf_raster_cleanup", err)
		}
	}()

	dpi := e.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	imagePath, err := e.Rasterizer.RenderFirstPage(ctx, pdfPath, dir, dpi)
	if err != nil {
		logEngineError("pdf_raster", err)
		return ""
	}
	return e.recognize(ctx, imagePath)
}

func (e *Extractor) recognize(ctx context.Context, imagePath string) string {
	if e.OCR == nil {
		logEngineError("ocr", errors.New("no ocr engine configured"))
		return ""
	}
	text, err := e.OCR.Recognize(ctx, imagePath)
	if err != nil {
		logEngineError("ocr", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func logEngineError(engine string, err error) {
	telemetry.Warn("extract.engine_error", map[string]any{
		"engine": engine,
		"error":  err.Error(),
	})
}
