package clip

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tbourn/quickclip/internal/domain"
)

const memoryShards = 32

type memoryShard struct {
	mu    sync.RWMutex
	clips map[string]domain.Clip
}

// MemoryBackend keeps clips in process memory, split over fixed shards so
// that concurrent writers to different codes rarely contend.
type MemoryBackend struct {
	shards [memoryShards]*memoryShard
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	m := &MemoryBackend{}
	for i := range m.shards {
		m.shards[i] = &memoryShard{clips: make(map[string]domain.Clip)}
	}
	return m
}

func (m *MemoryBackend) shard(code string) *memoryShard {
	return m.shards[xxhash.Sum64String(code)%memoryShards]
}

func (m *MemoryBackend) Insert(_ context.Context, c *domain.Clip) (bool, error) {
	sh := m.shard(c.Code)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.clips[c.Code]; exists {
		return false, nil
	}
	sh.clips[c.Code] = *c
	return true, nil
}

func (m *MemoryBackend) Get(_ context.Context, code string) (*domain.Clip, error) {
	sh := m.shard(code)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.clips[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryBackend) DeleteLive(_ context.Context, code string, now time.Time) (bool, error) {
	return m.deleteIf(code, func(c domain.Clip) bool { return c.ExpiresAt.After(now) }), nil
}

func (m *MemoryBackend) DeleteExpired(_ context.Context, code string, now time.Time) (bool, error) {
	return m.deleteIf(code, func(c domain.Clip) bool { return !c.ExpiresAt.After(now) }), nil
}

func (m *MemoryBackend) deleteIf(code string, pred func(domain.Clip) bool) bool {
	sh := m.shard(code)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.clips[code]
	if !ok || !pred(c) {
		return false
	}
	delete(sh.clips, code)
	return true
}

// ExpiredCodes scans shards until limit expired codes are found. Order is
// unspecified; the sweep removes whatever it is handed.
func (m *MemoryBackend) ExpiredCodes(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var out []string
	for _, sh := range m.shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sh.mu.RLock()
		for code, c := range sh.clips {
			if limit > 0 && len(out) >= limit {
				break
			}
			if !c.ExpiresAt.After(now) {
				out = append(out, code)
			}
		}
		sh.mu.RUnlock()
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryBackend) Count(_ context.Context) (int64, error) {
	var n int64
	for _, sh := range m.shards {
		sh.mu.RLock()
		n += int64(len(sh.clips))
		sh.mu.RUnlock()
	}
	return n, nil
}
