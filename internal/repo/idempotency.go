// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to make POST /clips safe to retry.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/quickclip/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (client_id, key) pair.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, clientID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("client_id = ? AND key = ? AND expires_at > ?", clientID, key, now).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records that (clientID, key) produced code. A row for the
// same pair that expired by now is cleared first so the key can be reused. It
// returns ErrDuplicate when a live row already exists.
func CreateIdempotency(ctx context.Context, db *gorm.DB, clientID, key, code string, status int, now, expiresAt time.Time) (*domain.Idempotency, error) {
	now = now.UTC()
	if err := db.WithContext(ctx).
		Where("client_id = ? AND key = ? AND expires_at <= ?", clientID, key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Key:       key,
		Code:      code,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteIdempotency removes the record for (clientID, key), if any.
func DeleteIdempotency(ctx context.Context, db *gorm.DB, clientID, key string) error {
	return db.WithContext(ctx).
		Where("client_id = ? AND key = ?", clientID, key).
		Delete(&domain.Idempotency{}).Error
}

// DeleteExpiredIdempotency purges up to limit rows with expires_at <= now and
// returns how many were removed.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int, error) {
	var ids []string
	q := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Where("id IN ? AND expires_at <= ?", ids, now).
		Delete(&domain.Idempotency{})
	return int(res.RowsAffected), res.Error
}
