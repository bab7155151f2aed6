package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"docqr-backend/internal/shared/util"
)

// ErrNotFound is returned when a storage key has no object behind it.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// LocalPather is implemented by stores whose objects already live on the local filesystem.
type LocalPather interface {
	LocalPath(storageKey string) (string, error)
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// DocumentKey builds the owner-scoped storage key for a document. The object name
// comes from the document id; only a short alphanumeric extension is kept from
// the uploaded file name.
func DocumentKey(ownerID, documentID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return path.Join(util.OwnerKey(ownerID), documentID+ext)
}

// Materialize returns a local filesystem path holding the object's bytes.
// Stores implementing LocalPather hand back their own path; anything else is
// copied into a temp file under dir. cleanup is always non-nil and safe to call.
func Materialize(ctx context.Context, store ObjectStore, storageKey, dir string) (string, func(), error) {
	noop := func() {}
	if lp, ok := store.(LocalPather); ok {
		p, err := lp.LocalPath(storageKey)
		if err != nil {
			return "", noop, err
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return "", noop, fmt.Errorf("%w: %s", ErrNotFound, storageKey)
			}
			return "", noop, err
		}
		return p, noop, nil
	}

	rc, err := store.Open(ctx, storageKey)
	if err != nil {
		return "", noop, err
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, "object-*"+path.Ext(storageKey))
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("copy object: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
