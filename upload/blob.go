package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore keeps the uploaded bytes and returns the URL recorded on the resource.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// ObjectKey builds a date-partitioned key such as "2026/10/17/<id>_<file>".
func ObjectKey(now time.Time, id, filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return path.Join(now.Format("2006"), now.Format("01"), now.Format("02"), id+"_"+name)
}

// escapeKey escapes each segment of a slash separated key for use in a URL path.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// LocalBlobStore writes blobs below Dir; the router serves Dir under URLPrefix.
type LocalBlobStore struct {
	Dir       string
	URLPrefix string
	// MaxBytes caps a single blob; zero means unlimited.
	MaxBytes int64
}

func NewLocalBlobStore(dir, urlPrefix string, maxBytes int64) *LocalBlobStore {
	return &LocalBlobStore{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/"), MaxBytes: maxBytes}
}

func (s *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if s.MaxBytes > 0 {
		src = &io.LimitedReader{R: src, N: s.MaxBytes + 1}
	}
	written, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		err = fmt.Errorf("blob exceeds %d bytes", s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.URLPrefix + "/" + escapeKey(key), nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
