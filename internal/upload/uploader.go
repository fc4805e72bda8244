package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/civic-issues/internal/config"
	"github.com/spec-kit/civic-issues/internal/domain"
	apperrors "github.com/spec-kit/civic-issues/pkg/util"
)

// StoredObject is the durable (URL, kind) pair produced for an accepted file.
type StoredObject struct {
	URL  string
	Kind domain.MediaKind
}

// Uploader stores raw uploads and returns durable references. The ticket
// core records what the uploader returns and treats failures as propagated
// errors; it never retries.
type Uploader interface {
	Store(ctx context.Context, file *multipart.FileHeader) (*StoredObject, error)
	MaxFiles() int
}

// LocalUploader writes accepted files under a local directory served as
// static content. It enforces the declared-MIME and per-file size limits.
type LocalUploader struct {
	dir      string
	baseURL  string
	maxBytes int64
	maxFiles int
}

// NewLocalUploader prepares the storage directory.
func NewLocalUploader(cfg config.UploadConfig) (*LocalUploader, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{
		dir:      cfg.Dir,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxFileSizeBytes(),
		maxFiles: cfg.MaxFilesPerItem,
	}, nil
}

// MaxFiles returns the per-request file count limit.
func (u *LocalUploader) MaxFiles() int {
	return u.maxFiles
}

// Store validates and persists one file, returning its public URL and kind.
func (u *LocalUploader) Store(_ context.Context, file *multipart.FileHeader) (*StoredObject, error) {
	kind, err := kindFromMime(file.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if u.maxBytes > 0 && file.Size > u.maxBytes {
		return nil, apperrors.NewUploadRejected(
			fmt.Sprintf("file %q exceeds the %d MB limit", file.Filename, u.maxBytes/(1024*1024)))
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	dst, err := os.Create(filepath.Join(u.dir, name))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &StoredObject{
		URL:  u.baseURL + "/uploads/" + name,
		Kind: kind,
	}, nil
}

// kindFromMime classifies the declared MIME type; anything outside
// image/* and video/* is rejected.
func kindFromMime(mimeType string) (domain.MediaKind, error) {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return domain.MediaKindVideo, nil
	case strings.HasPrefix(mimeType, "image/"):
		return domain.MediaKindImage, nil
	}
	return "", apperrors.NewUploadRejected("only image and video files are allowed")
}
