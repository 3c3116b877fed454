// Package clip implements the expiring record store behind QuickClip: code
// allocation, text sanitization and validation, put/get/delete with lazy
// expiry on read, and a background reclamation sweep. Expiry never depends on
// a storage engine's native TTL feature; every backend only has to provide the
// primitives in Backend.
package clip

import (
	"context"
	"time"

	"github.com/tbourn/quickclip/internal/domain"
)

// Backend is the storage contract the Store builds on. Implementations must be
// safe for concurrent use, and Insert must be atomic with respect to other
// Inserts of the same code.
type Backend interface {
	// Insert stores c unless a record with the same code already exists
	// (live or not yet reclaimed). It reports whether c was stored.
	Insert(ctx context.Context, c *domain.Clip) (bool, error)

	// Get returns the record for code, or ErrNotFound.
	Get(ctx context.Context, code string) (*domain.Clip, error)

	// DeleteLive removes code only if its ExpiresAt is after now.
	DeleteLive(ctx context.Context, code string, now time.Time) (bool, error)

	// DeleteExpired removes code only if its ExpiresAt is at or before now.
	DeleteExpired(ctx context.Context, code string, now time.Time) (bool, error)

	// ExpiredCodes lists up to limit codes whose ExpiresAt is at or before now.
	ExpiredCodes(ctx context.Context, now time.Time, limit int) ([]string, error)

	// Count returns the number of stored records, expired or not.
	Count(ctx context.Context) (int64, error)
}
