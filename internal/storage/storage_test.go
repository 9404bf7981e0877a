package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diewo77/multifactors/internal/apperr"
)

// 1x1 transparent PNG
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestDisk_UploadAndURL(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, "/storage/")

	if err := d.Upload(context.Background(), "avatars", "u1-abc.png", bytes.NewReader(tinyPNG), "image/png"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "avatars", "u1-abc.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, tinyPNG) {
		t.Error("stored bytes differ")
	}
	if url := d.PublicURL("avatars", "u1-abc.png"); url != "/storage/avatars/u1-abc.png" {
		t.Errorf("url = %q", url)
	}
}

func TestDisk_RejectsTraversal(t *testing.T) {
	d := NewDisk(t.TempDir(), "/storage")
	for _, tc := range []struct{ bucket, path string }{
		{"avatars", "../escape.png"},
		{"avatars", ""},
		{"../x", "a.png"},
		{"avatars", `..\a.png`},
	} {
		err := d.Upload(context.Background(), tc.bucket, tc.path, strings.NewReader("x"), "")
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("%q/%q: expected ErrInvalidPath, got %v", tc.bucket, tc.path, err)
		}
	}
}

func TestSaveAvatar(t *testing.T) {
	d := NewDisk(t.TempDir(), "/storage")
	url, err := SaveAvatar(context.Background(), d, "user-1", bytes.NewReader(tinyPNG))
	if err != nil {
		t.Fatalf("SaveAvatar: %v", err)
	}
	if !strings.HasPrefix(url, "/storage/avatars/user-1-") || !strings.HasSuffix(url, ".png") {
		t.Errorf("unexpected url %q", url)
	}
}

func TestSaveAvatar_Rejects(t *testing.T) {
	d := NewDisk(t.TempDir(), "/storage")
	ctx := context.Background()

	_, err := SaveAvatar(ctx, d, "u", strings.NewReader("just some text"))
	if !errors.Is(err, apperr.Validation) {
		t.Errorf("text upload: expected validation error, got %v", err)
	}

	big := append(append([]byte{}, tinyPNG...), make([]byte, MaxAvatarSize)...)
	_, err = SaveAvatar(ctx, d, "u", bytes.NewReader(big))
	if !errors.Is(err, apperr.Validation) {
		t.Errorf("large upload: expected validation error, got %v", err)
	}

	_, err = SaveAvatar(ctx, d, "u", bytes.NewReader(nil))
	if !errors.Is(err, apperr.Validation) {
		t.Errorf("empty upload: expected validation error, got %v", err)
	}
}
