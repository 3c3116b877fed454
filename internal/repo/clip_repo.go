// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Clip model.
//
// All functions are context-aware and accept a *gorm.DB handle. Expiry is
// never enforced by the database itself: callers pass "now" explicitly and
// every delete is conditional on the record's expires_at, so a live record is
// never removed as expired and vice versa.
//
// Functions:
//
//   - InsertClip(ctx, db, clip) -> (bool, error)
//     Inserts a row; false (no error) when the code is already taken.
//
//   - GetClip(ctx, db, code) -> (*domain.Clip, error)
//     Fetches one row by code, or ErrNotFound.
//
//   - DeleteLiveClip / DeleteExpiredClip(ctx, db, code, now) -> (bool, error)
//     Conditional single-row deletes.
//
//   - ListExpiredClipCodes(ctx, db, now, limit) -> ([]string, error)
//     Oldest-first page of codes with expires_at <= now.
//
//   - CountClips(ctx, db) -> (int64, error)
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quickclip/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// isUniqueViolation matches translated and untranslated duplicate-key errors.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}

// InsertClip stores c. A primary key collision reports (false, nil).
func InsertClip(ctx context.Context, db *gorm.DB, c *domain.Clip) (bool, error) {
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetClip loads a clip by code regardless of expiry.
func GetClip(ctx context.Context, db *gorm.DB, code string) (*domain.Clip, error) {
	var c domain.Clip
	err := db.WithContext(ctx).Where("code = ?", code).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}

// DeleteLiveClip removes code only while expires_at > now.
func DeleteLiveClip(ctx context.Context, db *gorm.DB, code string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Where("code = ? AND expires_at > ?", code, now).
		Delete(&domain.Clip{})
	return res.RowsAffected > 0, res.Error
}

// DeleteExpiredClip removes code only once expires_at <= now.
func DeleteExpiredClip(ctx context.Context, db *gorm.DB, code string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Where("code = ? AND expires_at <= ?", code, now).
		Delete(&domain.Clip{})
	return res.RowsAffected > 0, res.Error
}

// ListExpiredClipCodes returns up to limit expired codes, oldest expiry first.
func ListExpiredClipCodes(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]string, error) {
	var codes []string
	q := db.WithContext(ctx).
		Model(&domain.Clip{}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("code", &codes).Error
	return codes, err
}

// CountClips returns the number of rows in clips, expired or not.
func CountClips(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Clip{}).Count(&n).Error
	return n, err
}
