package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// LocalStore keeps objects under a directory on disk.
type LocalStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

var (
	_ Store       = (*LocalStore)(nil)
	_ LocalPather = (*LocalStore)(nil)
)

// NewLocalStore creates root if needed. baseURL prefixes public URLs.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local storage directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// LocalPath returns the file backing key.
func (s *LocalStore) LocalPath(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *LocalStore) Put(ctx context.Context, folder, originalName, contentType string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	key := ObjectKey(folder, originalName, s.now())
	p, err := s.LocalPath(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return Object{}, fmt.Errorf("failed to create folder %s: %w", folder, err)
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create %s: %w", key, err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(p)
		return Object{}, fmt.Errorf("failed to write %s: %w", key, err)
	}

	return Object{Key: key, FileName: originalName, Size: n, ContentType: contentType}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.LocalPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.LocalPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// PublicURL joins the base URL and the key. Without a base URL it returns
// a root-relative path under /uploads.
func (s *LocalStore) PublicURL(key string) string {
	if s.baseURL == "" {
		return "/uploads/" + key
	}
	return s.baseURL + "/" + key
}
