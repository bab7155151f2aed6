// Package local stores objects as plain files under a root directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docqr-backend/internal/shared/storage/object"
)

// ErrInvalidKey rejects keys that are empty, absolute or escape the root.
var ErrInvalidKey = errors.New("invalid storage key")

const (
	dirPerm  fs.FileMode = 0o750
	filePerm fs.FileMode = 0o640
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Put stages the body in a hidden temp file next to the target and renames it
// into place, so Open never observes a partial object. The content type is not
// recorded; documents carry their own MIME type.
func (s *Store) Put(ctx context.Context, storageKey string, _ string, r io.Reader) (int64, error) {
	target, err := s.LocalPath(storageKey)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return 0, fmt.Errorf("local put %s: %w", storageKey, err)
	}

	staged, err := os.CreateTemp(filepath.Dir(target), ".staged-*")
	if err != nil {
		return 0, fmt.Errorf("local put %s: %w", storageKey, err)
	}
	commit := false
	defer func() {
		if !commit {
			staged.Close()
			os.Remove(staged.Name())
		}
	}()

	n, err := io.Copy(staged, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return 0, fmt.Errorf("local put %s: %w", storageKey, err)
	}
	if err := staged.Chmod(filePerm); err != nil {
		return 0, fmt.Errorf("local put %s: %w", storageKey, err)
	}
	if err := staged.Close(); err != nil {
		return 0, fmt.Errorf("local put %s: %w", storageKey, err)
	}
	if err := os.Rename(staged.Name(), target); err != nil {
		return 0, fmt.Errorf("local put %s: %w", storageKey, err)
	}
	commit = true
	return n, nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.LocalPath(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, storageKey)
	case err != nil:
		return nil, fmt.Errorf("local open %s: %w", storageKey, err)
	}
	return f, nil
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.LocalPath(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local delete %s: %w", storageKey, err)
	}
	return nil
}

// LocalPath maps a slash-separated key onto the root.
func (s *Store) LocalPath(storageKey string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimSpace(storageKey)))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, storageKey)
	}
	return filepath.Join(s.root, rel), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var (
	_ object.ObjectStore = (*Store)(nil)
	_ object.LocalPather = (*Store)(nil)
)
