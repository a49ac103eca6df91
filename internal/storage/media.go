package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	VideosDir     = "videos"
	ThumbnailsDir = "thumbnails"
)

// ErrTooLarge indicates an upload exceeded the configured limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// MediaStore keeps uploaded files below a root directory. Names handed out are
// relative to the root with forward slashes, e.g. "videos/<uuid>.mp4".
type MediaStore struct {
	Root     string
	MaxBytes int64
}

// NewMediaStore constructs a MediaStore rooted at root.
func NewMediaStore(root string, maxBytes int64) *MediaStore {
	return &MediaStore{Root: root, MaxBytes: maxBytes}
}

// Save streams r into dir under a random name that keeps the extension of
// originalName. The file only appears under its final name once fully written.
func (m *MediaStore) Save(ctx context.Context, dir, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dir != VideosDir && dir != ThumbnailsDir {
		return "", fmt.Errorf("media store: unknown directory %q", dir)
	}

	target := filepath.Join(m.Root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("media store: create %s: %w", target, err)
	}

	name := uuid.NewString() + safeExt(originalName)
	tmp, err := os.CreateTemp(target, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("media store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	src := r
	if m.MaxBytes > 0 {
		src = io.LimitReader(r, m.MaxBytes+1)
	}
	written, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("media store: write %s: %w", name, err)
	}
	if m.MaxBytes > 0 && written > m.MaxBytes {
		return "", ErrTooLarge
	}

	if err := os.Rename(tmpName, filepath.Join(target, name)); err != nil {
		return "", fmt.Errorf("media store: finalize %s: %w", name, err)
	}
	return path.Join(dir, name), nil
}

// Path resolves a stored name to a filesystem path. It rejects names that would
// escape the root.
func (m *MediaStore) Path(name string) (string, bool) {
	clean := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	if clean == "/" || strings.Contains(name, "..") {
		return "", false
	}
	return filepath.Join(m.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), true
}

// Remove deletes a stored file. Missing files are not errors.
func (m *MediaStore) Remove(name string) error {
	p, ok := m.Path(name)
	if !ok {
		return fmt.Errorf("media store: invalid name %q", name)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media store: remove %s: %w", name, err)
	}
	return nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
