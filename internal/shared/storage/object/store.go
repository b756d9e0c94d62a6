package object

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"kamiscan-backend/internal/shared/util"
)

// ErrInvalidKey is returned for storage keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Presigner is implemented by stores that can hand out time-limited download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

// OwnerPrefix is the namespace every key saved for ownerID starts with.
func OwnerPrefix(ownerID string) string {
	return util.HashUserKey(ownerID) + "/"
}

// OwnedBy reports whether storageKey lives in ownerID's namespace.
func OwnedBy(storageKey, ownerID string) bool {
	if strings.Contains(storageKey, "..") {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(storageKey, "/"), OwnerPrefix(ownerID))
}
