package domain

import "time"

// Idempotency represents a recorded result of a previously processed create
// request, keyed by (client_id, key). It lets a client retry POST /clips with
// the same Idempotency-Key and receive the originally allocated code instead
// of creating a second clip. A record expires together with its clip.
//
// Column types stay portable across the sqlite and postgres drivers.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	ClientID  string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_client_key,priority:1"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_client_key,priority:2"`
	Code      string    `gorm:"type:varchar(16);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index:idx_idempotency_expires_at"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
