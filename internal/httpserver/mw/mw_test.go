package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestAdmin(t *testing.T) {
	tests := []struct {
		name   string
		cidrs  []string
		hosts  []string
		remote string
		host   string
		want   int
	}{
		{name: "no restrictions", remote: "203.0.113.9:1", host: "anything", want: http.StatusNoContent},
		{name: "cidr allowed", cidrs: []string{"10.0.0.0/8"}, remote: "10.2.3.4:1", host: "x", want: http.StatusNoContent},
		{name: "cidr rejected", cidrs: []string{"10.0.0.0/8"}, remote: "192.168.0.1:1", host: "x", want: http.StatusForbidden},
		{name: "exact host with port", hosts: []string{"admin.example.org"}, remote: "1.1.1.1:1", host: "admin.example.org:8080", want: http.StatusNoContent},
		{name: "wildcard host", hosts: []string{"*.example.org"}, remote: "1.1.1.1:1", host: "Ops.Example.org", want: http.StatusNoContent},
		{name: "host rejected", hosts: []string{"*.example.org"}, remote: "1.1.1.1:1", host: "example.com", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Admin(tt.cidrs, tt.hosts, false, logger.NewNop())(okHandler)
			r := httptest.NewRequest(http.MethodPost, "/api/import", nil)
			r.RemoteAddr = tt.remote
			r.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitConfig{
		Burst:             2,
		RefillPerIPPerMin: 2,
		Now:               func() time.Time { return now },
	})(okHandler)

	hit := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/import", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := hit("10.0.0.1:1"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := hit("10.0.0.1:1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}

	// Other clients have their own bucket.
	if rec := hit("10.0.0.2:1"); rec.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d", rec.Code)
	}

	now = now.Add(30 * time.Second)
	if rec := hit("10.0.0.1:1"); rec.Code != http.StatusNoContent {
		t.Fatalf("after refill status = %d", rec.Code)
	}
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	start := time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Burst: 1, IdleTTL: time.Minute, SweepInterval: time.Minute, Now: func() time.Time { return start }})

	l.allow("a", start)
	l.allow("b", start)
	if l.size() != 2 {
		t.Fatalf("size = %d, want 2", l.size())
	}

	l.allow("c", start.Add(2*time.Minute))
	if l.size() != 1 {
		t.Fatalf("size after sweep = %d, want 1", l.size())
	}
}

func TestLogKeepsFirstStatus(t *testing.T) {
	h := Log(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}
