package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/domain"
)

// ClipBackend adapts the GORM clip functions to clip.Backend.
type ClipBackend struct {
	DB *gorm.DB
}

var _ clip.Backend = (*ClipBackend)(nil)

// NewClipBackend returns a SQL-backed clip.Backend.
func NewClipBackend(db *gorm.DB) *ClipBackend { return &ClipBackend{DB: db} }

func (b *ClipBackend) Insert(ctx context.Context, c *domain.Clip) (bool, error) {
	return InsertClip(ctx, b.DB, c)
}

func (b *ClipBackend) Get(ctx context.Context, code string) (*domain.Clip, error) {
	c, err := GetClip(ctx, b.DB, code)
	if errors.Is(err, ErrNotFound) {
		return nil, clip.ErrNotFound
	}
	return c, err
}

func (b *ClipBackend) DeleteLive(ctx context.Context, code string, now time.Time) (bool, error) {
	return DeleteLiveClip(ctx, b.DB, code, now)
}

func (b *ClipBackend) DeleteExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	return DeleteExpiredClip(ctx, b.DB, code, now)
}

func (b *ClipBackend) ExpiredCodes(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return ListExpiredClipCodes(ctx, b.DB, now, limit)
}

func (b *ClipBackend) Count(ctx context.Context) (int64, error) {
	return CountClips(ctx, b.DB)
}
