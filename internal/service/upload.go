package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/storage"
)

// Upload limits.
const (
	MaxProjectFileBytes = 10 << 20
	MaxArchiveBytes     = 100 << 20
)

var (
	projectFileTypes = map[string]bool{".pdf": true, ".zip": true, ".md": true, ".txt": true}
	archiveTypes     = map[string]bool{".zip": true}
)

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	// Size is the size announced by the client; the stored size is counted.
	Size int64
	Body io.Reader
}

func checkUpload(u *Upload, maxBytes int64, allowed map[string]bool) error {
	if u == nil || u.Body == nil {
		return domain.NewValidationError("file", "is required", nil)
	}
	if u.Size > maxBytes {
		return domain.NewValidationError("file", fmt.Sprintf("exceeds the maximum size of %d MB", maxBytes>>20), nil)
	}
	ext := strings.ToLower(filepath.Ext(u.Name))
	if !allowed[ext] {
		kinds := make([]string, 0, len(allowed))
		for k := range allowed {
			kinds = append(kinds, strings.TrimPrefix(k, "."))
		}
		sort.Strings(kinds)
		return domain.NewValidationError("file", "type is not allowed, expected one of: "+strings.Join(kinds, ", "), nil)
	}
	return nil
}

// putUpload stores u and rejects it after the fact when the body turned
// out larger than announced.
func putUpload(ctx context.Context, files storage.Store, folder string, u *Upload, maxBytes int64) (*domain.StoredFile, error) {
	obj, err := files.Put(ctx, folder, u.Name, u.ContentType, io.LimitReader(u.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	if obj.Size > maxBytes {
		_ = files.Delete(ctx, obj.Key)
		return nil, domain.NewValidationError("file", fmt.Sprintf("exceeds the maximum size of %d MB", maxBytes>>20), nil)
	}
	return &domain.StoredFile{Key: obj.Key, FileName: obj.FileName, Size: obj.Size}, nil
}

// discard removes an object that is no longer referenced. Failures only
// leave an orphan behind, so they are logged.
func discard(ctx context.Context, files storage.Store, log *slog.Logger, key string) {
	if key == "" {
		return
	}
	if err := files.Delete(ctx, key); err != nil {
		log.Warn("failed to delete stored file",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func withURL(files storage.Store, f *domain.StoredFile) {
	if f != nil && f.Key != "" {
		f.URL = files.PublicURL(f.Key)
	}
}
