package clip

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tbourn/quickclip/internal/domain"
)

func TestMemoryBackend_Primitives(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c := &domain.Clip{Code: "AAAAAA", Text: "a", TTLSeconds: 60, CreatedAt: base, ExpiresAt: base.Add(time.Minute)}
	if ok, err := b.Insert(ctx, c); !ok || err != nil {
		t.Fatalf("Insert: ok=%v err=%v", ok, err)
	}
	if ok, _ := b.Insert(ctx, c); ok {
		t.Fatal("second insert of same code must fail")
	}

	if _, err := b.Get(ctx, "BBBBBB"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}

	// Still live: DeleteExpired must refuse.
	if ok, _ := b.DeleteExpired(ctx, "AAAAAA", base.Add(59*time.Second)); ok {
		t.Fatal("DeleteExpired removed a live record")
	}
	// Expired: DeleteLive must refuse.
	if ok, _ := b.DeleteLive(ctx, "AAAAAA", base.Add(time.Minute)); ok {
		t.Fatal("DeleteLive removed an expired record")
	}
	if ok, _ := b.DeleteExpired(ctx, "AAAAAA", base.Add(time.Minute)); !ok {
		t.Fatal("DeleteExpired did not remove expired record")
	}
	if n, _ := b.Count(ctx); n != 0 {
		t.Fatalf("count = %d", n)
	}
}

func TestMemoryBackend_ExpiredCodesLimited(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, code := range []string{"CCCCCC", "AAAAAA", "BBBBBB", "DDDDDD"} {
		_, _ = b.Insert(ctx, &domain.Clip{
			Code:      code,
			Text:      "x",
			CreatedAt: base,
			ExpiresAt: base.Add(time.Duration(i+1) * time.Second),
		})
	}
	now := base.Add(3 * time.Second)
	expired := map[string]bool{"CCCCCC": true, "AAAAAA": true, "BBBBBB": true}

	got, err := b.ExpiredCodes(ctx, now, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] == got[1] || !expired[got[0]] || !expired[got[1]] {
		t.Fatalf("ExpiredCodes(limit 2) = %v", got)
	}

	all, _ := b.ExpiredCodes(ctx, now, 0)
	if len(all) != 3 {
		t.Fatalf("unlimited = %v", all)
	}
	for _, code := range all {
		if !expired[code] {
			t.Fatalf("live clip %s listed as expired", code)
		}
	}
}

func TestMemoryBackend_ExpiredCodesDrainsBacklog(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	const n = 500
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("C%05d", i)
		_, _ = b.Insert(ctx, &domain.Clip{Code: code, Text: "x", CreatedAt: base, ExpiresAt: base})
	}

	removed := 0
	for page := 0; page < n; page++ {
		codes, err := b.ExpiredCodes(ctx, base, 64)
		if err != nil {
			t.Fatal(err)
		}
		if len(codes) > 64 {
			t.Fatalf("page of %d exceeds limit", len(codes))
		}
		if len(codes) == 0 {
			break
		}
		for _, code := range codes {
			if ok, _ := b.DeleteExpired(ctx, code, base); ok {
				removed++
			}
		}
	}
	if removed != n {
		t.Fatalf("removed %d of %d", removed, n)
	}
}
