// Package services – ClipService
//
// This file implements the ClipService, which fronts the expiring clip store
// for the HTTP layer. Besides delegating to the store it makes creation
// idempotent: a client that retries POST /clips with the same Idempotency-Key
// gets the originally allocated clip back for as long as that clip is live.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/domain"
	"github.com/tbourn/quickclip/internal/repo"
)

// ClipStore is the subset of *clip.Store used by the service.
type ClipStore interface {
	Put(ctx context.Context, text string, ttlSeconds int) (*domain.Clip, error)
	Get(ctx context.Context, code string) (*domain.Clip, int, error)
	Delete(ctx context.Context, code string) (bool, error)
}

// ClipService provides clip-level operations.
type ClipService struct {
	// DB holds idempotency records. A nil DB disables idempotent replay.
	DB *gorm.DB
	// Store is the expiring record store.
	Store ClipStore

	Now func() time.Time
}

// NewClipService constructs a ClipService.
func NewClipService(db *gorm.DB, store ClipStore) *ClipService {
	return &ClipService{DB: db, Store: store, Now: time.Now}
}

// Create stores text for ttlSeconds and returns the new clip. When idemKey is
// set and a live record for (clientID, idemKey) exists, the original clip is
// returned instead and replayed is true.
func (s *ClipService) Create(ctx context.Context, clientID, idemKey, text string, ttlSeconds int) (c *domain.Clip, replayed bool, err error) {
	tr := otel.Tracer("services/ClipService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int("clip.ttl_seconds", ttlSeconds),
			attribute.Bool("idempotent", idemKey != ""),
		),
	)
	defer span.End()

	idemKey = strings.TrimSpace(idemKey)
	useIdem := idemKey != "" && s.DB != nil

	if useIdem {
		prev, err := s.replay(ctx, clientID, idemKey)
		if err != nil {
			return nil, false, err
		}
		if prev != nil {
			span.SetAttributes(attribute.Bool("replayed", true))
			return prev, true, nil
		}
	}

	c, err = s.Store.Put(ctx, text, ttlSeconds)
	if err != nil {
		return nil, false, err
	}

	if useIdem {
		_, err := repo.CreateIdempotency(ctx, s.DB, clientID, idemKey, c.Code, http.StatusCreated, s.Now(), c.ExpiresAt)
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			// A concurrent request with the same key won; hand back its clip
			// and drop ours.
			if prev, rerr := s.replay(ctx, clientID, idemKey); rerr == nil && prev != nil {
				if _, derr := s.Store.Delete(ctx, c.Code); derr != nil {
					log.Warn().Err(derr).Msg("discard duplicate clip failed")
				}
				return prev, true, nil
			}
		case err != nil:
			log.Warn().Err(err).Msg("store idempotency record failed")
		}
	}
	return c, false, nil
}

// replay returns the live clip previously created for (clientID, key), or nil.
// A record whose clip is gone is removed so the key can be reused.
func (s *ClipService) replay(ctx context.Context, clientID, key string) (*domain.Clip, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, clientID, key, s.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c, _, err := s.Store.Get(ctx, rec.Code)
	if errors.Is(err, clip.ErrNotFound) {
		_ = repo.DeleteIdempotency(ctx, s.DB, clientID, key)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the live clip for code and its remaining whole seconds.
func (s *ClipService) Get(ctx context.Context, code string) (*domain.Clip, int, error) {
	c, remaining, err := s.Store.Get(ctx, code)
	if errors.Is(err, clip.ErrNotFound) {
		return nil, 0, ErrClipNotFound
	}
	return c, remaining, err
}

// Delete removes a live clip, or returns ErrClipNotFound.
func (s *ClipService) Delete(ctx context.Context, code string) error {
	ok, err := s.Store.Delete(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClipNotFound
	}
	return nil
}
