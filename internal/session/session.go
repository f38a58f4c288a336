// Package session stores active-session markers keyed by username. A marker
// lives until it is deleted or its TTL lapses; callers only ever observe
// presence or absence.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no live marker exists for the key.
var ErrNotFound = errors.New("session: not found")

// Store is a TTL cache of session markers.
type Store interface {
	// SetIfAbsent stores the marker only when none is live and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close()
}
