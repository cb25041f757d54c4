package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecat/internal/cache"
	"cinecat/internal/metrics"
	"cinecat/internal/tmdb"
	"cinecat/internal/upstream"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type upstreamStub struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
	last  map[string]string
}

func (u *upstreamStub) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[path]
}

func (u *upstreamStub) query(path string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last[path]
}

func stubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /3/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{
			"page":          1,
			"results":       []map[string]any{{"id": 1, "title": "RRR", "original_language": "te"}},
			"total_pages":   1,
			"total_results": 1,
		})
	})
	mux.HandleFunc("GET /3/discover/tv", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{
			"page":    1,
			"results": []map[string]any{{"id": 2, "name": "Sacred Games", "original_language": "hi"}},
		})
	})
	mux.HandleFunc("GET /3/person/{id}/tv_credits", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{
			"cast": []map[string]any{{"id": 7, "name": "Delhi Crime"}},
		})
	})
	mux.HandleFunc("GET /3/search/movie", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{
			"page": 1,
			"results": []map[string]any{
				{"id": 3, "title": "Baahubali", "original_language": "te"},
				{"id": 4, "title": "Gladiator", "original_language": "en"},
			},
		})
	})
	mux.HandleFunc("GET /3/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "408" {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
			stubJSON(w, http.StatusOK, map[string]any{"id": 408})
			return
		}
		if r.PathValue("id") != "550" {
			stubJSON(w, http.StatusNotFound, map[string]any{"status_code": 34, "status_message": "missing"})
			return
		}
		stubJSON(w, http.StatusOK, map[string]any{
			"id":          550,
			"title":       "Fight Club",
			"poster_path":   "/fc.jpg",
			"backdrop_path": "/fc-wide.jpg",
			"videos": map[string]any{"results": []map[string]any{
				{"key": "qtRKdVHc-cE", "name": "Official Trailer", "site": "YouTube", "type": "Trailer"},
				{"key": "clip", "site": "YouTube", "type": "Clip"},
			}},
		})
	})
	mux.HandleFunc("GET /3/genre/{type}/list", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{"genres": []map[string]any{{"id": 18, "name": "Drama"}}})
	})
	mux.HandleFunc("GET /3/watch/providers/movie", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"provider_id": 8, "provider_name": "Netflix"}}})
	})
	mux.HandleFunc("GET /3/certification/movie/list", func(w http.ResponseWriter, r *http.Request) {
		stubJSON(w, http.StatusOK, map[string]any{"certifications": map[string]any{
			"IN": []map[string]any{{"certification": "UA"}},
		}})
	})
	mux.HandleFunc("GET /3/search/person", func(w http.ResponseWriter, r *http.Request) {
		var results []map[string]any
		for i := 1; i <= 15; i++ {
			results = append(results, map[string]any{"id": i, "name": "person"})
		}
		stubJSON(w, http.StatusOK, map[string]any{"page": 1, "results": results})
	})
	mux.HandleFunc("GET /3/tv/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	u := &upstreamStub{calls: make(map[string]int), last: make(map[string]string)}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.calls[r.URL.Path]++
		u.last[r.URL.Path] = r.URL.RawQuery
		u.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

type testEnv struct {
	upstream *upstreamStub
	router   http.Handler
	clock    *testClock
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	up := newUpstreamStub(t)
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	pool, err := upstream.NewPool([]string{up.URL + "/3"}, nil)
	require.NoError(t, err)

	tc := cache.NewTimedCache(cache.DefaultTTL, cache.WithClock(clock.Now))
	opts.Catalog = tmdb.New(tmdb.Options{
		APIKey:  "k",
		Pool:    pool,
		Fetcher: cache.NewFetcher(tc, cache.WithCoalescing(), cache.WithObserver(metrics.CacheObserver{})),
		Now:     clock.Now,
	})
	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"*"}
	}

	router, err := NewRouter(opts)
	require.NoError(t, err)
	return &testEnv{upstream: up, router: router, clock: clock}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/api/v1/genres/movie")

	rr := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `cinecat_cache_misses_total{op="genres"}`)
	assert.Contains(t, rr.Body.String(), `route="/api/v1/genres/{type}"`)
}

func TestRouter_Movies(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/api/v1/movies?languages=te&languages=hi,ta&genres=28,12&providers=8&providers=119&sort=rating&year=2022&runtime=long&certification=UA")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	page := decode[tmdb.Page[tmdb.Movie]](t, rr)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "RRR", page.Results[0].Title)

	q := env.upstream.query("/3/discover/movie")
	for _, want := range []string{
		"with_original_language=hi%7Cta%7Cte",
		"with_genres=12%2C28",
		"with_watch_providers=8%7C119",
		"sort_by=vote_average.desc",
		"primary_release_year=2022",
		"with_runtime.gte=180",
		"certification=UA",
	} {
		assert.Contains(t, q, want)
	}
}

func TestRouter_MoviesCachedAcrossEquivalentQueries(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, target := range []string{
		"/api/v1/movies?languages=hi,ta&genres=28,12",
		"/api/v1/movies?languages=ta&languages=hi&genres=12&genres=28",
		"/api/v1/movies?genres=28,12&languages=ta,hi&page=1&sort=popularity",
	} {
		rr := env.get(t, target)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 1, env.upstream.count("/3/discover/movie"))
}

func TestRouter_MoviesByPerson(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/api/v1/movies?person=35742&languages=ta")
	require.Equal(t, http.StatusOK, rr.Code)
	q := env.upstream.query("/3/discover/movie")
	assert.Contains(t, q, "with_people=35742")
	assert.NotContains(t, q, "with_original_language")

	rr = env.get(t, "/api/v1/tv?person=35742")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[tmdb.Page[tmdb.TVShow]](t, rr)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Delhi Crime", page.Results[0].Name)
	assert.Equal(t, 1, env.upstream.count("/3/person/35742/tv_credits"))
	assert.Zero(t, env.upstream.count("/3/discover/tv"))
}

func TestRouter_TV(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/api/v1/tv?from=2019&to=2021")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, env.upstream.query("/3/discover/tv"), "first_air_date.gte=2019-01-01")
}

func TestRouter_Upcoming(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/api/v1/movies/upcoming?languages=ml&page=2")
	require.Equal(t, http.StatusOK, rr.Code)
	q := env.upstream.query("/3/discover/movie")
	assert.Contains(t, q, "sort_by=primary_release_date.asc")
	assert.Contains(t, q, "page=2")
}

func TestRouter_Search(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/api/v1/search/movie?q=baahubali")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[tmdb.Page[tmdb.Movie]](t, rr)
	require.Len(t, page.Results, 1)
	assert.Equal(t, 3, page.Results[0].ID)

	rr = env.get(t, "/api/v1/search/movie?q=")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.get(t, "/api/v1/search/anime?q=naruto")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_DetailsScenario(t *testing.T) {
	env := newTestEnv(t, Options{})

	steps := []struct {
		advance   time.Duration
		wantCalls int
	}{
		{0, 1},
		{120 * time.Second, 1},
		{190 * time.Second, 2},
	}
	for _, step := range steps {
		env.clock.Advance(step.advance)

		rr := env.get(t, "/api/v1/details/movie/550")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, step.wantCalls, env.upstream.count("/3/movie/550"))

		body := decode[map[string]any](t, rr)
		assert.Equal(t, "Fight Club", body["title"])
		assert.Equal(t, "https://image.tmdb.org/t/p/w500/fc.jpg", body["poster_url"])
		assert.Equal(t, "https://image.tmdb.org/t/p/w200/fc.jpg", body["thumb_url"])
		assert.Equal(t, "https://image.tmdb.org/t/p/original/fc-wide.jpg", body["backdrop_url"])
		assert.Equal(t, []any{map[string]any{
			"name":          "Official Trailer",
			"url":           "https://www.youtube.com/watch?v=qtRKdVHc-cE",
			"thumbnail_url": "https://img.youtube.com/vi/qtRKdVHc-cE/hqdefault.jpg",
		}}, body["trailers"])
	}
}

func TestRouter_UpstreamTimeout(t *testing.T) {
	env := newTestEnv(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/details/movie/408", nil).WithContext(ctx)
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.JSONEq(t, `{"error":"upstream timed out"}`, rr.Body.String())
}

func TestRouter_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		target string
		code   int
	}{
		{"/api/v1/details/movie/1", http.StatusNotFound},
		{"/api/v1/details/tv/1", http.StatusBadGateway},
		{"/api/v1/details/movie/abc", http.StatusBadRequest},
		{"/api/v1/details/person/1", http.StatusBadRequest},
		{"/api/v1/movies?page=0x", http.StatusBadRequest},
		{"/api/v1/movies?page=501", http.StatusBadRequest},
		{"/api/v1/movies?sort=newest", http.StatusBadRequest},
		{"/api/v1/movies?from=2020", http.StatusBadRequest},
		{"/api/v1/movies?year=-5", http.StatusBadRequest},
		{"/api/v1/movies?year=99999", http.StatusBadRequest},
		{"/api/v1/tv?from=-3000&to=-2000", http.StatusBadRequest},
		{"/api/v1/movies?genres=drama", http.StatusBadRequest},
		{"/api/v1/tv?person=x", http.StatusBadRequest},
		{"/api/v1/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := env.get(t, tt.target)
			assert.Equal(t, tt.code, rr.Code)
			body := decode[map[string]string](t, rr)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_FailedDetailsAreRetried(t *testing.T) {
	env := newTestEnv(t, Options{})

	for range 2 {
		rr := env.get(t, "/api/v1/details/tv/1")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	}
	assert.Equal(t, 2, env.upstream.count("/3/tv/1"))
}

func TestRouter_Vocabularies(t *testing.T) {
	env := newTestEnv(t, Options{})

	genres := decode[[]tmdb.Genre](t, env.get(t, "/api/v1/genres/tv"))
	assert.Equal(t, []tmdb.Genre{{ID: 18, Name: "Drama"}}, genres)

	providers := decode[[]tmdb.Provider](t, env.get(t, "/api/v1/providers"))
	require.Len(t, providers, 1)
	assert.Equal(t, 8, providers[0].ProviderID)

	certs := decode[[]tmdb.Certification](t, env.get(t, "/api/v1/certifications"))
	require.Len(t, certs, 1)
	assert.Equal(t, "UA", certs[0].Certification)
}

func TestRouter_People(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.get(t, "/api/v1/people?q=a")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))
	assert.Zero(t, env.upstream.count("/3/search/person"))

	people := decode[[]tmdb.Person](t, env.get(t, "/api/v1/people?q=mammootty"))
	assert.Len(t, people, maxPeople)
	assert.Equal(t, 1, env.upstream.count("/3/search/person"))
}

func TestRouter_BlockedCIDRs(t *testing.T) {
	env := newTestEnv(t, Options{BlockedCIDRs: []string{"192.0.2.0/24"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.RemoteAddr = "192.0.2.10:5000"
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, env.upstream.count("/3/watch/providers/movie"))

	_, err := NewRouter(Options{BlockedCIDRs: []string{"nonsense"}})
	assert.Error(t, err)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://cinema.example"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/genres/movie", nil)
	req.Header.Set("Origin", "https://cinema.example")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://cinema.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
