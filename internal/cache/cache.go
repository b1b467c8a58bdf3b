// Package cache stores recognition results for identical frames and revoked token IDs.
package cache

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"time"
)

// Key prefixes shared by every backend.
const (
	frameKeyPrefix   = "att:img:"
	revokedKeyPrefix = "auth:revoked:"
)

// RecognitionCache maps a frame fingerprint to the employee it was recognized as
type RecognitionCache interface {
	// GetEmployee returns the cached employee ID for a frame hash
	GetEmployee(ctx context.Context, hash string) (int64, bool, error)
	// SetEmployee caches the employee ID for a frame hash
	SetEmployee(ctx context.Context, hash string, employeeID int64, ttl time.Duration) error
}

// HashFrame fingerprints decoded image bytes.
func HashFrame(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // content fingerprint, not a security boundary
	return hex.EncodeToString(sum[:])
}
