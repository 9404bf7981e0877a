// Package storage stores uploaded files in named buckets and hands out
// their public URLs.
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

// ErrInvalidPath is returned for object paths that escape their bucket.
var ErrInvalidPath = errors.New("storage: invalid object path")

// Storage is the object storage capability.
type Storage interface {
	Upload(ctx context.Context, bucket, objectPath string, r io.Reader, contentType string) error
	PublicURL(bucket, objectPath string) string
}

// Disk keeps objects under Root/<bucket>/<path>, served at BaseURL/<bucket>/<path>.
type Disk struct {
	Root    string
	BaseURL string
}

// NewDisk creates a disk store.
func NewDisk(root, baseURL string) *Disk {
	return &Disk{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func clean(bucket, objectPath string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", ErrInvalidPath
	}
	p := path.Clean("/" + objectPath)
	if p == "/" || strings.Contains(objectPath, "..") || strings.Contains(objectPath, `\`) {
		return "", ErrInvalidPath
	}
	return path.Join(bucket, p), nil
}

// Upload writes r to the object atomically. contentType is not persisted;
// the file server derives it from the extension.
func (d *Disk) Upload(ctx context.Context, bucket, objectPath string, r io.Reader, _ string) error {
	rel, err := clean(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(d.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return os.Rename(tmp.Name(), dst)
}

// PublicURL returns the URL the object is served at.
func (d *Disk) PublicURL(bucket, objectPath string) string {
	rel, err := clean(bucket, objectPath)
	if err != nil {
		return ""
	}
	return d.BaseURL + "/" + rel
}
