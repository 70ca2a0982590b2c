// Package storage keeps uploaded document bytes and hands back a locator
// the screening agent can fetch.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Local writes documents under a directory as <uuid>_<name> and returns a
// file:// locator.
type Local struct {
	dir   string
	newID func() string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	return &Local{dir: abs, newID: uuid.NewString}, nil
}

func (s *Local) Store(ctx context.Context, fileName, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, s.newID()+"_"+safeName(fileName))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return "file://" + filepath.ToSlash(path), nil
}

// GCS uploads documents to a bucket as <uuid><ext> and returns the public
// object URL.
type GCS struct {
	client *storage.Client
	bucket string
	newID  func() string
}

func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket, newID: uuid.NewString}
}

func (s *GCS) Store(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	object := s.objectName(fileName)
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", object, err)
	}
	return s.objectURL(object), nil
}

func (s *GCS) objectName(fileName string) string {
	return s.newID() + strings.ToLower(filepath.Ext(safeName(fileName)))
}

func (s *GCS) objectURL(object string) string {
	return "https://storage.googleapis.com/" + s.bucket + "/" + object
}

// safeName drops any directory part of a client-supplied file name.
func safeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}
