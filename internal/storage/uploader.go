package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

// Uploader stores a batch of uploaded files as task attachments.
type Uploader struct {
	store   Store
	timeout time.Duration
	baseURL string
	now     func() time.Time
}

// NewUploader returns an Uploader that addresses objects under
// baseURL + "/api/attachments/".
func NewUploader(store Store, timeout time.Duration, baseURL string) *Uploader {
	return &Uploader{
		store:   store,
		timeout: timeout,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// URLFor returns the public address of the object stored under key.
func (u *Uploader) URLFor(key string) string {
	return u.baseURL + "/api/attachments/" + key
}

// UploadAll uploads files one at a time, each bounded by the upload timeout.
// If any upload fails, objects already stored by this call are deleted and
// an upload failure is returned, so the batch either lands whole or not at all.
func (u *Uploader) UploadAll(ctx context.Context, files []*multipart.FileHeader) ([]model.Attachment, error) {
	attachments := make([]model.Attachment, 0, len(files))
	stored := make([]string, 0, len(files))

	for _, fh := range files {
		key := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		if err := u.uploadOne(ctx, key, fh); err != nil {
			slog.Error("attachment upload failed", "filename", fh.Filename, "error", err)
			u.discard(stored)
			return nil, apperr.UploadFailure("File upload failed", err)
		}
		stored = append(stored, key)
		attachments = append(attachments, model.Attachment{
			URL:        u.URLFor(key),
			Filename:   fh.Filename,
			UploadedAt: u.now(),
		})
	}
	return attachments, nil
}

func (u *Uploader) uploadOne(ctx context.Context, key string, fh *multipart.FileHeader) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == defaultContentType {
		contentType = ContentTypeFor(fh.Filename)
	}

	if _, err := u.store.Put(ctx, key, f, fh.Size, contentType); err != nil {
		return err
	}
	return nil
}

// discard removes objects of a failed batch. Failures are logged only.
func (u *Uploader) discard(keys []string) {
	for _, key := range keys {
		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		if err := u.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to remove orphaned attachment", "key", key, "error", err)
		}
		cancel()
	}
}

// Discard deletes the objects behind attachments addressed by this uploader.
func (u *Uploader) Discard(attachments []model.Attachment) {
	prefix := u.URLFor("")
	keys := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if key, ok := strings.CutPrefix(a.URL, prefix); ok {
			keys = append(keys, key)
		}
	}
	u.discard(keys)
}
