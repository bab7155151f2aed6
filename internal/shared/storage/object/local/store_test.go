package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docqr-backend/internal/shared/storage/object"
)

func TestPutOpenDeleteRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "owner/doc-1.pdf", "application/pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected size %d", n)
	}

	rc, err := store.Open(ctx, "owner/doc-1.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4 body" {
		t.Fatalf("unexpected body %q", data)
	}

	if err := store.Delete(ctx, "owner/doc-1.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, "owner/doc-1.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "owner/doc-1.pdf"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../escape", "/etc/passwd", "", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, "", strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", key, err)
		}
	}
	if _, err := store.LocalPath("..hidden/doc"); err != nil {
		t.Fatalf("dot-prefixed name inside root should be allowed: %v", err)
	}
}

func TestPutCanceledLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Put(ctx, "o/doc.txt", "text/plain", strings.NewReader("body")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "o"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no staged files left, found %d", len(entries))
	}
}

func TestMaterializeUsesStorePath(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if _, err := store.Put(context.Background(), "o/doc.png", "image/png", strings.NewReader("img")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	p, cleanup, err := object.Materialize(context.Background(), store, "o/doc.png", t.TempDir())
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	cleanup()
	if !strings.HasPrefix(p, dir) {
		t.Fatalf("expected in-store path, got %q", p)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("cleanup must not remove the stored object: %v", err)
	}
}
