package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cinecat/internal/config"
	"cinecat/internal/logging"
)

func newTMDB(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/3/movie/550" || r.URL.Query().Get("api_key") != "secret" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":550,"title":"Fight Club"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func buildHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := NewBuilder(cfg, logging.Nop{}).Build(ctx)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if srv.Addr != cfg.Server.Address {
		t.Errorf("Addr = %q, want %q", srv.Addr, cfg.Server.Address)
	}
	return srv.Handler
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address: ":0",
			CORS:    config.CORSConfig{AllowedOrigins: []string{"*"}},
		},
		TMDB: config.TMDBConfig{
			APIKey:   "secret",
			BaseURLs: []string{baseURL + "/3"},
			Region:   "IN",
			Timeout:  time.Second,
			CircuitBreaker: config.CircuitBreakerConfig{
				ConsecutiveFailures: 5,
				Cooldown:            time.Second,
			},
		},
		Telemetry: config.TelemetryConfig{ServiceName: "cinecat-test"},
	}
}

func TestBuild_CachesDetails(t *testing.T) {
	tmdbSrv, calls := newTMDB(t)
	h := buildHandler(t, testConfig(tmdbSrv.URL))

	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/details/movie/550", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestBuild_CacheDisabled(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*config.Config)
	}{
		{"enabled false", func(c *config.Config) {
			off := false
			c.Cache.Enabled = &off
		}},
		{"zero ttl", func(c *config.Config) {
			zero := time.Duration(0)
			c.Cache.TTL = &zero
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmdbSrv, calls := newTMDB(t)
			cfg := testConfig(tmdbSrv.URL)
			tt.mod(cfg)
			h := buildHandler(t, cfg)

			for range 3 {
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/details/movie/550", nil))
				if rr.Code != http.StatusOK {
					t.Fatalf("status = %d", rr.Code)
				}
			}
			if got := calls.Load(); got != 3 {
				t.Errorf("upstream calls = %d, want 3", got)
			}
		})
	}
}

func TestBuild_InvalidBlockedCIDR(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Server.BlockedCIDRs = []string{"300.0.0.0/8"}

	if _, err := NewBuilder(cfg, logging.Nop{}).Build(context.Background()); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
}
