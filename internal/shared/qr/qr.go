package qr

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered PNG edge length in pixels.
const DefaultSize = 256

// Renderer produces a QR code image for a piece of content.
type Renderer interface {
	PNGBase64(content string) (string, error)
}

// PNGRenderer renders QR codes as base64 PNG using quartile-level error correction.
type PNGRenderer struct {
	Size int
}

// NewPNGRenderer returns a renderer with the default size.
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{Size: DefaultSize}
}

// PNGBase64 encodes content and returns the PNG bytes as standard base64.
func (r *PNGRenderer) PNGBase64(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("qr content is empty")
	}
	size := r.Size
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(content, qrcode.High, size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// DataURI wraps a base64 PNG for direct use in an <img> tag.
func DataURI(pngBase64 string) string {
	return "data:image/png;base64," + pngBase64
}
