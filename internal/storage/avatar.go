package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/diewo77/multifactors/internal/apperr"
	"github.com/google/uuid"
)

const (
	// AvatarBucket holds profile pictures.
	AvatarBucket = "avatars"
	// MaxAvatarSize is the upload limit for profile pictures.
	MaxAvatarSize = 5 << 20
)

var imageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// SaveAvatar validates and stores a profile picture at
// avatars/<userID>-<random>.<ext> and returns its public URL.
// The extension comes from the sniffed content type, not the client filename.
func SaveAvatar(ctx context.Context, s Storage, userID string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "Could not read upload", err)
	}
	if len(data) == 0 {
		return "", apperr.Invalid(map[string]string{"avatar": "Please choose an image"})
	}
	if len(data) > MaxAvatarSize {
		return "", apperr.Invalid(map[string]string{"avatar": "Image must be 5 MB or smaller"})
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", apperr.Invalid(map[string]string{"avatar": "Only JPEG, PNG, GIF or WebP images are allowed"})
	}

	objectPath := userID + "-" + uuid.NewString()[:8] + "." + ext
	if err := s.Upload(ctx, AvatarBucket, objectPath, bytes.NewReader(data), contentType); err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "Error uploading avatar", err)
	}
	return s.PublicURL(AvatarBucket, objectPath), nil
}
