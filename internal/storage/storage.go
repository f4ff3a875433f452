package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrUnsupportedContentType = errors.New("unsupported photo content type")

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// PhotoObjectKey builds a unique key for a customer's log photo:
// photos/<customer>/week-<n>/<uuid><ext>.
func PhotoObjectKey(customerID primitive.ObjectID, week int, contentType string) (string, error) {
	ext, ok := photoExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return path.Join("photos", customerID.Hex(), fmt.Sprintf("week-%d", week), uuid.NewString()+ext), nil
}

// OwnsObjectKey reports whether the key lives under the customer's photo prefix.
func OwnsObjectKey(customerID primitive.ObjectID, objectKey string) bool {
	return strings.HasPrefix(objectKey, path.Join("photos", customerID.Hex())+"/")
}
