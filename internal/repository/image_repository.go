package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore accepts raw image bytes plus a filename hint and returns a
// stable reference usable as a report's imageUrl.
type ImageStore interface {
	Save(ctx context.Context, filenameHint string, r io.Reader) (string, error)
	// Delete removes a stored image by the reference Save returned.
	// Unknown references are not an error.
	Delete(ctx context.Context, ref string) error
}

// LocalImageStore writes uploads to a directory served under urlPrefix.
type LocalImageStore struct {
	dir       string
	urlPrefix string
}

func NewLocalImageStore(dir, urlPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalImageStore{dir: dir, urlPrefix: urlPrefix}, nil
}

func (s *LocalImageStore) Dir() string {
	return s.dir
}

func (s *LocalImageStore) Save(ctx context.Context, filenameHint string, r io.Reader) (string, error) {
	name := uuid.NewString() + imageExt(filenameHint)
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	return path.Join(s.urlPrefix, name), nil
}

func (s *LocalImageStore) Delete(ctx context.Context, ref string) error {
	name := path.Base(ref)
	if ref != path.Join(s.urlPrefix, name) || name == "." || name == "/" {
		return fmt.Errorf("image %q is not stored under %s", ref, s.urlPrefix)
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// imageExt keeps the lower-cased extension only when it is plain
// alphanumerics, so the generated name stays URL-safe.
func imageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	if len(ext) > 8 {
		ext = ext[:8]
	}
	return ext
}
