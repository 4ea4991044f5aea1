// Package storage keeps uploaded files. Objects are addressed by keys of
// the form "<folder>/<sanitized-stem>-<unix-ms><ext>" on local disk or in
// a Google Cloud Storage bucket.
package storage

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
	"time"

	"github.com/mygeslike/api/internal/config"
)

// Folders used by the API.
const (
	FolderProjects     = "projects"
	FolderDeliverables = "deliverables"
)

var (
	// ErrObjectNotFound is returned for keys that do not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for keys that escape the store root.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes a stored file.
type Object struct {
	Key         string
	FileName    string
	Size        int64
	ContentType string
}

// Store persists file contents.
type Store interface {
	// Put stores r under folder with a key derived from originalName.
	Put(ctx context.Context, folder, originalName, contentType string, r io.Reader) (Object, error)

	// Delete removes an object. Deleting a missing object returns
	// ErrObjectNotFound.
	Delete(ctx context.Context, key string) error

	// Open streams an object's contents.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// PublicURL returns the URL clients download the object from.
	PublicURL(key string) string
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName replaces every character outside [a-zA-Z0-9._-] with '_'
// and drops any directory part.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// ObjectKey builds the key for originalName uploaded at now.
func ObjectKey(folder, originalName string, now time.Time) string {
	name := SanitizeName(originalName)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem = "file"
	}
	return path.Join(folder, fmt.Sprintf("%s-%d%s", stem, now.UnixMilli(), ext))
}

// cleanKey rejects absolute keys and keys that climb out of the root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if key == "" || cleaned == "" || cleaned != key || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// LocalPather is implemented by stores that keep objects on the local disk.
type LocalPather interface {
	LocalPath(key string) (string, error)
}

// Materialize makes an object available as a local file. Local stores
// hand out the stored path; other stores copy the object into dir. The
// returned cleanup removes any copy.
func Materialize(ctx context.Context, s Store, key, dir string) (string, func(), error) {
	if lp, ok := s.(LocalPather); ok {
		p, err := lp.LocalPath(key)
		if err != nil {
			return "", nil, err
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
			}
			return "", nil, err
		}
		return p, func() {}, nil
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, "archive-*"+path.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to copy %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
