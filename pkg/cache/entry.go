package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

// Entry is a stored snapshot.
type Entry struct {
	// Snapshot is the rendered snapshot. After a round trip through Redis
	// numbers are json.Number values.
	Snapshot snapshot.Snapshot `json:"snapshot"`

	// ETag identifies the snapshot content.
	ETag string `json:"etag"`

	// CapturedAt is when the snapshot was rendered.
	CapturedAt time.Time `json:"captured_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry wraps snap with a content ETag and an expiry ttl from now.
func NewEntry(snap snapshot.Snapshot, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Snapshot:   snap,
		ETag:       ComputeETag(snap),
		CapturedAt: now,
		Expires:    now.Add(ttl),
	}
}

// ComputeETag returns a strong ETag over the JSON form of snap. Map keys are
// encoded in sorted order, so equal snapshots share an ETag.
func ComputeETag(snap snapshot.Snapshot) string {
	data, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
