package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// TesseractEngine runs the tesseract CLI.
type TesseractEngine struct {
	Binary    string
	Languages string
}

// Recognize prints recognized text to stdout and returns it.
func (t TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{imagePath, "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}
	out, err := run(ctx, bin, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	Binary string
}

// RenderFirstPage writes <outDir>/page.png for page 1 at dpi.
func (p PdftoppmRasterizer) RenderFirstPage(ctx context.Context, pdfPath, outDir string, dpi int) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	prefix := filepath.Join(outDir, "page")
	args := []string{"-f", "1", "-l", "1", "-r", strconv.Itoa(dpi), "-png", "-singlefile", pdfPath, prefix}
	if _, err := run(ctx, bin, args...); err != nil {
		return "", err
	}
	imagePath := prefix + ".png"
	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("%s produced no image: %w", filepath.Base(bin), err)
	}
	return imagePath, nil
}

func run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[:300]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return stdout.Bytes(), nil
}
