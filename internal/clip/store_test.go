package clip

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/quickclip/internal/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	s := NewStore(NewMemoryBackend(), Options{})
	clk := newFakeClock()
	s.Now = clk.Now
	return s, clk
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := NewStore(NewMemoryBackend(), Options{})
	ctx := context.Background()

	c, err := s.Put(ctx, "hello", 60)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !codeRE.MatchString(c.Code) {
		t.Fatalf("bad code %q", c.Code)
	}
	if got := c.ExpiresAt.Sub(c.CreatedAt); got != 60*time.Second {
		t.Fatalf("expires - created = %v, want 60s", got)
	}

	got, remaining, err := s.Get(ctx, c.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("text = %q", got.Text)
	}
	if remaining < 55 || remaining > 60 {
		t.Fatalf("remaining = %d, want within [55,60]", remaining)
	}
}

func TestStore_GetIsCaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.Put(ctx, "x", 60)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get(ctx, "  "+strings.ToLower(c.Code)+" "); err != nil {
		t.Fatalf("lowercase lookup: %v", err)
	}
}

func TestStore_ExpiryIsLazyAndFinal(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	var removed []RemoveReason
	s.Hooks.OnRemove = func(_ string, r RemoveReason) { removed = append(removed, r) }

	c, err := s.Put(ctx, "secret", 30)
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(29 * time.Second)
	if _, rem, err := s.Get(ctx, c.Code); err != nil || rem != 1 {
		t.Fatalf("before expiry: rem=%d err=%v", rem, err)
	}

	clk.Advance(time.Second) // now == expires_at
	if _, _, err := s.Get(ctx, c.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("at expiry: err=%v, want ErrNotFound", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("expired record not removed by Get, count=%d", n)
	}
	if len(removed) != 1 || removed[0] != ReasonLazyExpiry {
		t.Fatalf("removed = %v", removed)
	}

	// Rewinding the clock must not resurrect it.
	clk.Advance(-time.Hour)
	if _, _, err := s.Get(ctx, c.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resurrected: err=%v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	c, err := s.Put(ctx, "bye", 60)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := s.Delete(ctx, strings.ToLower(c.Code))
	if err != nil || !ok {
		t.Fatalf("Delete live: ok=%v err=%v", ok, err)
	}
	if _, _, err := s.Get(ctx, c.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}
	if ok, _ := s.Delete(ctx, c.Code); ok {
		t.Fatal("second delete should report false")
	}
	if ok, _ := s.Delete(ctx, "ZZZZZZ"); ok {
		t.Fatal("unknown code should report false")
	}

	// An expired clip cannot be deleted, but is reclaimed.
	c2, err := s.Put(ctx, "stale", 30)
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(31 * time.Second)
	if ok, err := s.Delete(ctx, c2.Code); ok || err != nil {
		t.Fatalf("Delete expired: ok=%v err=%v", ok, err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("expired occupant not reclaimed, count=%d", n)
	}
}

func TestStore_PutValidation(t *testing.T) {
	s := NewStore(NewMemoryBackend(), Options{MaxTextBytes: 10})
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		ttl   int
		field string
	}{
		{"empty", "", 60, "text"},
		{"only controls", "\x00\x01 \n", 60, "text"},
		{"too long", strings.Repeat("a", 11), 60, "text"},
		{"ttl too small", "ok", 29, "timer"},
		{"ttl too large", "ok", 601, "timer"},
		{"ttl negative", "ok", -1, "timer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Put(ctx, tt.text, tt.ttl)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Fatalf("field = %q, want %q", ve.Field, tt.field)
			}
			if !IsValidation(err) {
				t.Fatal("IsValidation = false")
			}
		})
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("rejected puts wrote %d records", n)
	}
}

func TestStore_PutStoresSanitizedText(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.Put(ctx, "hello\x00\x01world\n", 60)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := s.Get(ctx, c.Code)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "helloworld" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestStore_ConcurrentPutsAreUnique(t *testing.T) {
	s := NewStore(NewMemoryBackend(), Options{})
	ctx := context.Background()

	const n = 1000
	codes := make([]string, n)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.Put(ctx, "payload", 600)
			if err != nil {
				errs <- err
				return
			}
			codes[i] = c.Code
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Put: %v", err)
	}

	seen := make(map[string]struct{}, n)
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = struct{}{}
	}
	if got, _ := s.Count(ctx); got != n {
		t.Fatalf("count = %d, want %d", got, n)
	}
}

// fullBackend rejects every insert as a collision.
type fullBackend struct {
	*MemoryBackend
	attempts int
}

func (b *fullBackend) Insert(context.Context, *domain.Clip) (bool, error) {
	b.attempts++
	return false, nil
}

func TestStore_AllocationExhausted(t *testing.T) {
	b := &fullBackend{MemoryBackend: NewMemoryBackend()}
	s := NewStore(b, Options{MaxAttempts: 5})

	_, err := s.Put(context.Background(), "x", 60)
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("err = %v, want ErrAllocationExhausted", err)
	}
	if b.attempts != 5 {
		t.Fatalf("attempts = %d, want 5", b.attempts)
	}
}

// brokenBackend fails every call.
type brokenBackend struct{ *MemoryBackend }

var errBroken = errors.New("storage down")

func (brokenBackend) Insert(context.Context, *domain.Clip) (bool, error) { return false, errBroken }
func (brokenBackend) Get(context.Context, string) (*domain.Clip, error) { return nil, errBroken }
func (brokenBackend) DeleteLive(context.Context, string, time.Time) (bool, error) {
	return false, errBroken
}

func TestStore_BackendErrorsPropagate(t *testing.T) {
	s := NewStore(brokenBackend{NewMemoryBackend()}, Options{})
	ctx := context.Background()

	if _, err := s.Put(ctx, "x", 60); !errors.Is(err, errBroken) {
		t.Fatalf("Put err = %v", err)
	}
	if _, _, err := s.Get(ctx, "ABCDEF"); !errors.Is(err, errBroken) {
		t.Fatalf("Get err = %v", err)
	}
	if _, err := s.Delete(ctx, "ABCDEF"); !errors.Is(err, errBroken) {
		t.Fatalf("Delete err = %v", err)
	}
}

func TestStore_CreateHook(t *testing.T) {
	s, _ := newTestStore(t)
	var created []string
	s.Hooks.OnCreate = func(c domain.Clip) { created = append(created, c.Code) }

	c, err := s.Put(context.Background(), "x", 60)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0] != c.Code {
		t.Fatalf("created = %v", created)
	}
}
