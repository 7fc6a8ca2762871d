// Package library stores captured pictures in a directory.
package library

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const pictureExt = ".jpg"

// Library is a directory of JPEG pictures named by random UUIDs.
//
// It implements surfacecamera.PictureSink. Safe for concurrent use.
type Library struct {
	dir     string
	quality int

	saved  atomic.Uint64
	failed atomic.Uint64
}

// New creates the directory if needed and returns a Library writing JPEGs
// with the given quality (1-100).
func New(dir string, quality int) (*Library, error) {
	if dir == "" {
		return nil, fmt.Errorf("library: directory is required")
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("library: invalid JPEG quality %d (must be 1-100)", quality)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("library: create directory: %w", err)
	}
	return &Library{dir: dir, quality: quality}, nil
}

// Dir returns the library directory
func (l *Library) Dir() string {
	return l.dir
}

// Store decodes data, rotates it 90 degrees clockwise when rotate is set and
// writes it as <uuid>.jpg. It returns the UUID and the file path.
func (l *Library) Store(ctx context.Context, data []byte, rotate bool) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		l.failed.Add(1)
		return "", "", fmt.Errorf("library: decode picture: %w", err)
	}
	if rotate {
		img = imaging.Rotate270(img)
	}

	id := uuid.New().String()
	path := filepath.Join(l.dir, id+pictureExt)
	if err := imaging.Save(img, path, imaging.JPEGQuality(l.quality)); err != nil {
		l.failed.Add(1)
		return "", "", fmt.Errorf("library: save picture: %w", err)
	}
	l.saved.Add(1)

	b := img.Bounds()
	slog.Debug("library: picture stored",
		"id", id,
		"path", path,
		"size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"rotated", rotate,
	)
	return id, path, nil
}

// List returns the IDs of stored pictures in lexical order
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("library: read directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, pictureExt) {
			continue
		}
		id := strings.TrimSuffix(name, pictureExt)
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of stored pictures
func (l *Library) Count() (int, error) {
	ids, err := l.List()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Path returns the file path for a picture ID
func (l *Library) Path(id string) string {
	return filepath.Join(l.dir, id+pictureExt)
}

// Stats returns how many pictures were saved and how many failed since New
func (l *Library) Stats() (saved, failed uint64) {
	return l.saved.Load(), l.failed.Load()
}
