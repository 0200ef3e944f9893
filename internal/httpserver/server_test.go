package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/confsync/internal/config"
	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/pipeline"
)

type stubImporter struct{ calls int }

func (s *stubImporter) Source() string { return "schedule.xml" }

func (s *stubImporter) Import(context.Context, pipeline.Request) (pipeline.Summary, error) {
	s.calls++
	return pipeline.Summary{Source: "schedule.xml"}, nil
}

type noConfs struct{}

func (noConfs) ListConferences(context.Context) ([]domain.Conference, error) { return nil, nil }

func newTestServer(t *testing.T, mutate func(*deps.Deps)) (http.Handler, *stubImporter) {
	t.Helper()
	imp := &stubImporter{}
	d := deps.Deps{
		Logger:          logger.NewNop(),
		StartTime:       time.Now(),
		TimeNow:         func() time.Time { return time.Date(2024, 11, 8, 9, 0, 0, 0, time.UTC) },
		ImportRateBurst: 2,
		Store:           noConfs{},
		Importer:        imp,
		ImportTrigger:   make(chan struct{}, 1),
	}
	if mutate != nil {
		mutate(&d)
	}
	cfg := &config.Config{ListenPort: ":0", RequestTimeout: 5 * time.Second}
	return New(cfg, logger.NewNop(), d).Handler(), imp
}

func do(h http.Handler, method, path, remote, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if remote != "" {
		r.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRoutesMounted(t *testing.T) {
	h, _ := newTestServer(t, nil)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodHead, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/infra", http.StatusOK},
		{http.MethodPost, "/api/import", http.StatusOK},
		{http.MethodPost, "/api/reload", http.StatusAccepted},
		{http.MethodGet, "/api/import", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := do(h, tt.method, tt.path, "", ""); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestImminentRouteNeedsRunner(t *testing.T) {
	h, _ := newTestServer(t, nil)
	if rec := do(h, http.MethodPost, "/api/notify/imminent", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no notifier is wired", rec.Code)
	}
}

func TestImportIsRateLimited(t *testing.T) {
	h, imp := newTestServer(t, nil)

	for i := 0; i < 2; i++ {
		if rec := do(h, http.MethodPost, "/api/import", "10.0.0.1:1234", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := do(h, http.MethodPost, "/api/import", "10.0.0.1:1234", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if imp.calls != 2 {
		t.Errorf("importer calls = %d, want 2", imp.calls)
	}
}

func TestAdminRoutesHonourCIDRs(t *testing.T) {
	h, imp := newTestServer(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })

	if rec := do(h, http.MethodPost, "/api/import", "192.168.1.1:1", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("outside status = %d, want 403", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/import", "10.1.1.1:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("inside status = %d, want 200", rec.Code)
	}
	if imp.calls != 1 {
		t.Errorf("importer calls = %d, want 1", imp.calls)
	}
	// Liveness stays open.
	if rec := do(h, http.MethodGet, "/healthz", "192.168.1.1:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
