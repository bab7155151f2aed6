package extract

import "strings"

// Kind is the extraction strategy selected from a declared media type.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

const mimePDF = "application/pdf"

var imageTypes = map[string]struct{}{
	"image/jpeg":     {},
	"image/jpg":      {},
	"image/pjpeg":    {},
	"image/png":      {},
	"image/gif":      {},
	"image/bmp":      {},
	"image/x-ms-bmp": {},
	"image/tiff":     {},
	"image/webp":     {},
}

// Classify maps a declared media type to its extraction kind.
func Classify(mediaType string) Kind {
	clean := normalizeMimeType(mediaType)
	if clean == mimePDF {
		return KindPDF
	}
	if _, ok := imageTypes[clean]; ok {
		return KindImage
	}
	return KindUnsupported
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}
