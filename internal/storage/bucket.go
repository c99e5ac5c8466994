// Package storage stores uploaded files in a named bucket and resolves their public URLs.
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
)

// ErrExists is returned by Upload when the object exists and Upsert is off
var ErrExists = errors.New("object already exists")

type UploadOptions struct {
	Upsert      bool
	ContentType string
}

// Bucket is a flat namespace of objects addressed by slash-separated keys
type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, opts UploadOptions) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// LocalBucket keeps objects on disk under Root and serves them from BaseURL
type LocalBucket struct {
	Root    string
	BaseURL string
}

func NewLocalBucket(root, baseURL string) (*LocalBucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalBucket{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (b *LocalBucket) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.Root, filepath.FromSlash(clean)), nil
}

func (b *LocalBucket) Upload(ctx context.Context, key string, r io.Reader, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(p, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return err
	}
	return f.Close()
}

func (b *LocalBucket) Delete(ctx context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *LocalBucket) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return b.BaseURL + "/" + strings.TrimLeft(key, "/")
}
