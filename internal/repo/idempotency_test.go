package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quickclip/internal/domain"
)

// seedIdem inserts a record for (client, key) that expires at base+expiresIn.
func seedIdem(t *testing.T, db *gorm.DB, client, key, code string, expiresIn time.Duration) {
	t.Helper()
	rec := &domain.Idempotency{
		ID:        fmt.Sprintf("%s/%s", client, key),
		ClientID:  client,
		Key:       key,
		Code:      code,
		Status:    201,
		CreatedAt: base.Add(-time.Hour),
		ExpiresAt: base.Add(expiresIn),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed %s/%s: %v", client, key, err)
	}
}

func TestGetIdempotency(t *testing.T) {
	db := newClipDB(t)
	seedIdem(t, db, "ip:1", "live", "ABCDEF", time.Minute)
	seedIdem(t, db, "ip:1", "stale", "GHJKMN", -time.Second)
	seedIdem(t, db, "ip:1", "edge", "PQRSTV", 0)

	tests := []struct {
		name, client, key, wantCode string
	}{
		{"live", "ip:1", "live", "ABCDEF"},
		{"expired", "ip:1", "stale", ""},
		{"expires exactly now", "ip:1", "edge", ""},
		{"missing", "ip:1", "nope", ""},
		{"blank key", "ip:1", "  ", ""},
		{"other client", "ip:2", "live", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := GetIdempotency(context.Background(), db, tc.client, tc.key, base)
			if tc.wantCode == "" {
				if rec != nil || !errors.Is(err, ErrNotFound) {
					t.Fatalf("got (%+v, %v); want ErrNotFound", rec, err)
				}
				return
			}
			if err != nil || rec.Code != tc.wantCode || rec.Status != 201 {
				t.Fatalf("got (%+v, %v); want code %s", rec, err, tc.wantCode)
			}
		})
	}
}

func TestCreateIdempotency(t *testing.T) {
	ctx := context.Background()
	db := newClipDB(t)
	exp := base.Add(90 * time.Minute)

	rec, err := CreateIdempotency(ctx, db, "ip:9", "k9", "XYZ234", 201, base, exp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || rec.ClientID != "ip:9" || rec.Code != "XYZ234" || !rec.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := CreateIdempotency(ctx, db, "ip:9", "k9", "OTHER2", 201, base, exp); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second live create: err = %v; want ErrDuplicate", err)
	}
	if _, err := CreateIdempotency(ctx, db, "ip:8", "k9", "OTHER2", 201, base, exp); err != nil {
		t.Fatalf("same key for another client: %v", err)
	}

	// Once the first record has expired the key is free again.
	later := exp.Add(time.Second)
	rec, err = CreateIdempotency(ctx, db, "ip:9", "k9", "NEWONE", 201, later, later.Add(time.Minute))
	if err != nil || rec.Code != "NEWONE" {
		t.Fatalf("reuse after expiry: rec=%+v err=%v", rec, err)
	}
}

func TestCreateIdempotency_MissingTable(t *testing.T) {
	db := newClipDB(t)
	if err := db.Migrator().DropTable(&domain.Idempotency{}); err != nil {
		t.Fatal(err)
	}
	_, err := CreateIdempotency(context.Background(), db, "c", "k", "ABCDEF", 201, base, base.Add(time.Minute))
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want a plain database error", err)
	}
}

func TestIdempotencyPurge(t *testing.T) {
	ctx := context.Background()
	db := newClipDB(t)
	for i := 1; i <= 5; i++ {
		seedIdem(t, db, "c", fmt.Sprintf("old-%d", i), "AAAAAA", -time.Duration(i)*time.Second)
	}
	seedIdem(t, db, "c", "live", "BBBBBB", time.Hour)

	for _, want := range []int{3, 2, 0} {
		n, err := DeleteExpiredIdempotency(ctx, db, base, 3)
		if err != nil || n != want {
			t.Fatalf("purge: n=%d err=%v; want %d", n, err, want)
		}
	}

	if err := DeleteIdempotency(ctx, db, "c", "live"); err != nil {
		t.Fatal(err)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 0 {
		t.Fatalf("%d rows left", left)
	}
}
