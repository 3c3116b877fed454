// Package domain defines the persistence models for shared clips and the
// idempotency records that guard clip creation. These types are mapped with
// GORM for the SQL backend and serialized as JSON by the Redis backend.
package domain

import "time"

// Clip is one stored text payload addressed by a short code. A clip is never
// mutated after creation; it is only removed (explicitly, lazily on read after
// expiry, or by the reclamation sweep).
//
// Fields:
//   - Code: fixed-length uppercase code; primary key.
//   - Text: sanitized UTF-8 payload.
//   - TTLSeconds: lifetime requested by the client (exposed as "timer").
//   - CreatedAt: UTC insertion time.
//   - ExpiresAt: CreatedAt + TTLSeconds; indexed so expired rows can be paged.
type Clip struct {
	Code       string    `json:"code"       gorm:"type:varchar(16);primaryKey"`
	Text       string    `json:"text"       gorm:"type:text;not null"`
	TTLSeconds int       `json:"timer"      gorm:"column:ttl_seconds;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null;index:idx_clips_expires_at"`
}

// TableName returns the database table name for Clip.
func (Clip) TableName() string { return "clips" }

// ExpiredAt reports whether the clip is no longer live at now.
// A clip whose expiry equals now is already expired.
func (c *Clip) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// RemainingSeconds returns the whole seconds left before expiry, floored at 0.
func (c *Clip) RemainingSeconds(now time.Time) int {
	d := c.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
