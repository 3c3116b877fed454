package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		set  any
		want string
	}{
		{"remote address", nil, "ip:203.0.113.9"},
		{"override", "edge-42", "client:edge-42"},
		{"empty override ignored", "", "ip:203.0.113.9"},
		{"wrong type ignored", 7, "ip:203.0.113.9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = "203.0.113.9:12345"
			if tc.set != nil {
				c.Set("clientID", tc.set)
			}
			if got := KeyByClient()(c); got != tc.want {
				t.Fatalf("ClientID = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	tests := []struct {
		rps       float64
		burst     int
		wantBurst int
		wantRetry string
	}{
		{0.5, 0, 1, "2"},
		{1, 5, 5, "1"},
		{0.3, 30, 30, "4"},
		{0, -1, 1, "1"},
	}
	for _, tc := range tests {
		rl := NewRateLimiter(tc.rps, tc.burst, nil)
		if rl.burst != tc.wantBurst || rl.retryAfter != tc.wantRetry || rl.keyFn == nil {
			t.Errorf("NewRateLimiter(%v, %d): burst=%d retry=%q keyFn nil=%v",
				tc.rps, tc.burst, rl.burst, rl.retryAfter, rl.keyFn == nil)
		}
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return clock }

	rl.allow("stale")
	clock = clock.Add(idleBucketTTL)
	rl.lookups = evictEvery - 1
	rl.allow("fresh")

	if _, ok := rl.buckets["stale"]; ok {
		t.Fatal("idle bucket survived the sweep")
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Fatal("bucket for the current key missing")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter = %d after sweep", rl.lookups)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(0.5, 1, nil)
	rl.now = func() time.Time { return clock }

	if !rl.allow("k") {
		t.Fatal("first token denied")
	}
	if rl.allow("k") {
		t.Fatal("empty bucket allowed a request")
	}
	clock = clock.Add(2 * time.Second)
	if !rl.allow("k") {
		t.Fatal("bucket did not refill after 2s at 0.5 rps")
	}
}

func TestIsRateBypass(t *testing.T) {
	for _, tc := range []struct {
		val  any
		want bool
	}{{nil, false}, {true, true}, {false, false}, {"yes", false}} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if tc.val != nil {
			c.Set(ctxKeyRateBypass, tc.val)
		}
		if got := IsRateBypass(c); got != tc.want {
			t.Errorf("IsRateBypass(%v) = %v", tc.val, got)
		}
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, KeyByClient())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header(requestIDHeader, "rid-1")
		if c.Query("replay") == "1" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/api/clips/:code", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(target, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if remote != "" {
			req.RemoteAddr = remote
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	steps := []struct {
		name   string
		target string
		remote string
		want   int
	}{
		{"first request", "/api/clips/ABCDEF", "", http.StatusOK},
		{"bucket empty", "/api/clips/ABCDEF", "", http.StatusTooManyRequests},
		{"replay bypasses", "/api/clips/ABCDEF?replay=1", "", http.StatusOK},
		{"other client", "/api/clips/ABCDEF", "198.51.100.1:4000", http.StatusOK},
	}
	for _, s := range steps {
		w := send(s.target, s.remote)
		if w.Code != s.want {
			t.Fatalf("%s: status %d; want %d", s.name, w.Code, s.want)
		}
		if s.want != http.StatusTooManyRequests {
			continue
		}
		if got := w.Header().Get("Retry-After"); got != "1" {
			t.Fatalf("Retry-After = %q", got)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON body: %v", err)
		}
		if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
			t.Fatalf("unexpected body: %v", body)
		}
	}
}
