package clip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/quickclip/internal/domain"
)

// RemoveReason labels why a clip left the store.
type RemoveReason string

const (
	ReasonDeleted    RemoveReason = "deleted"
	ReasonLazyExpiry RemoveReason = "lazy_expiry"
	ReasonSweep      RemoveReason = "sweep"
)

// Hooks are optional callbacks fired after a state change has been applied to
// the backend. They run synchronously on the caller's goroutine and must not
// block.
type Hooks struct {
	OnCreate func(c domain.Clip)
	OnRemove func(code string, reason RemoveReason)
}

// Options bound what the store accepts.
type Options struct {
	CodeLength   int
	MinTTL       time.Duration
	MaxTTL       time.Duration
	MaxTextBytes int
	// MaxAttempts caps allocation retries per Put.
	MaxAttempts int
}

// DefaultOptions returns the stock limits: 6-symbol codes, TTL between 30 and
// 600 seconds, 100000 bytes of text and 16 allocation attempts.
func DefaultOptions() Options {
	return Options{
		CodeLength:   DefaultCodeLength,
		MinTTL:       30 * time.Second,
		MaxTTL:       600 * time.Second,
		MaxTextBytes: 100000,
		MaxAttempts:  16,
	}
}

// Store is the expiring record store. A record is visible only while its
// ExpiresAt lies in the future; expired records are removed lazily by Get or
// Delete callers and eagerly by a Sweeper.
type Store struct {
	backend Backend
	gen     *Generator
	opts    Options

	// Now supplies the current time; tests replace it with a fake clock.
	Now   func() time.Time
	Hooks Hooks
}

// NewStore wires a Store over b. Zero-valued options take the defaults.
func NewStore(b Backend, opts Options) *Store {
	def := DefaultOptions()
	if opts.CodeLength <= 0 {
		opts.CodeLength = def.CodeLength
	}
	if opts.MinTTL <= 0 {
		opts.MinTTL = def.MinTTL
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = def.MaxTTL
	}
	if opts.MaxTextBytes <= 0 {
		opts.MaxTextBytes = def.MaxTextBytes
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	return &Store{
		backend: b,
		gen:     NewGenerator(opts.CodeLength),
		opts:    opts,
		Now:     time.Now,
	}
}

// Options returns the effective limits.
func (s *Store) Options() Options { return s.opts }

// Backend exposes the underlying storage for the sweeper and health checks.
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) now() time.Time {
	return s.Now().UTC().Truncate(time.Microsecond)
}

// Put validates and sanitizes text, allocates a fresh code and stores the clip
// with ExpiresAt = now + ttlSeconds. Validation failures are returned as
// *ValidationError. If every allocation attempt collides, Put returns
// ErrAllocationExhausted.
func (s *Store) Put(ctx context.Context, text string, ttlSeconds int) (*domain.Clip, error) {
	tr := otel.Tracer("clip/Store")
	ctx, span := tr.Start(ctx, "Put",
		trace.WithAttributes(attribute.Int("clip.ttl_seconds", ttlSeconds)),
	)
	defer span.End()

	clean, err := s.validate(text, ttlSeconds)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	c := &domain.Clip{
		Text:       clean,
		TTLSeconds: ttlSeconds,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(ttlSeconds) * time.Second),
	}

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		code, err := s.gen.New()
		if err != nil {
			return nil, s.fail(span, err)
		}
		c.Code = code

		ok, err := s.backend.Insert(ctx, c)
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("insert clip: %w", err))
		}
		if ok {
			span.SetAttributes(attribute.Int("clip.attempts", attempt))
			clipsCreated.Inc()
			if s.Hooks.OnCreate != nil {
				s.Hooks.OnCreate(*c)
			}
			return c, nil
		}
		codeCollisions.Inc()
	}
	return nil, s.fail(span, ErrAllocationExhausted)
}

// Get returns the live clip for code along with its remaining whole seconds.
// An expired record is removed before ErrNotFound is returned, so it can never
// be observed again.
func (s *Store) Get(ctx context.Context, code string) (*domain.Clip, int, error) {
	code = NormalizeCode(code)
	tr := otel.Tracer("clip/Store")
	ctx, span := tr.Start(ctx, "Get")
	defer span.End()

	c, err := s.backend.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, s.fail(span, err)
	}

	now := s.now()
	if c.ExpiredAt(now) {
		removed, err := s.backend.DeleteExpired(ctx, code, now)
		if err != nil {
			return nil, 0, s.fail(span, err)
		}
		if removed {
			s.removed(code, ReasonLazyExpiry)
		}
		return nil, 0, ErrNotFound
	}
	return c, c.RemainingSeconds(now), nil
}

// Delete removes a live clip. It reports false when no live clip had the code;
// an expired occupant is reclaimed on the way out but still reported as false.
func (s *Store) Delete(ctx context.Context, code string) (bool, error) {
	code = NormalizeCode(code)
	tr := otel.Tracer("clip/Store")
	ctx, span := tr.Start(ctx, "Delete")
	defer span.End()

	now := s.now()
	ok, err := s.backend.DeleteLive(ctx, code, now)
	if err != nil {
		return false, s.fail(span, err)
	}
	if ok {
		s.removed(code, ReasonDeleted)
		return true, nil
	}

	expired, err := s.backend.DeleteExpired(ctx, code, now)
	if err != nil {
		return false, s.fail(span, err)
	}
	if expired {
		s.removed(code, ReasonLazyExpiry)
	}
	return false, nil
}

// Count returns the number of records held by the backend, including expired
// records not yet reclaimed.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.backend.Count(ctx)
}

func (s *Store) validate(text string, ttlSeconds int) (string, error) {
	clean, err := Sanitize(text)
	if err != nil {
		return "", &ValidationError{Field: "text", Reason: "cannot be sanitized"}
	}
	if clean == "" {
		return "", &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if len(clean) > s.opts.MaxTextBytes {
		return "", &ValidationError{Field: "text", Reason: fmt.Sprintf("exceeds %d bytes", s.opts.MaxTextBytes)}
	}

	minSec, maxSec := int(s.opts.MinTTL/time.Second), int(s.opts.MaxTTL/time.Second)
	if ttlSeconds < minSec || ttlSeconds > maxSec {
		return "", &ValidationError{
			Field:  "timer",
			Reason: fmt.Sprintf("must be between %d and %d seconds", minSec, maxSec),
		}
	}
	return clean, nil
}

func (s *Store) removed(code string, reason RemoveReason) {
	clipsRemoved.WithLabelValues(string(reason)).Inc()
	if s.Hooks.OnRemove != nil {
		s.Hooks.OnRemove(code, reason)
	}
}

func (s *Store) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
