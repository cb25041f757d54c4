package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strconv"
	"sync"

	"cinecat/internal/logging"
	"cinecat/internal/middleware"
)

type counter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (c *counter) inc(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[path]++
}

func (c *counter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.hits))
	for k, v := range c.hits {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	flag.Parse()

	logger := logging.New(logging.Options{Format: "text"})
	hits := &counter{hits: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /3/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		hits.inc(r.URL.Path)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJSON(w, map[string]any{
			"page": max(page, 1),
			"results": []map[string]any{
				{"id": 19404, "title": "Dilwale Dulhania Le Jayenge", "original_language": "hi", "popularity": 20.1, "vote_average": 8.5},
				{"id": 579974, "title": "RRR", "original_language": "te", "popularity": 35.7, "vote_average": 7.8},
			},
			"total_pages":   3,
			"total_results": 6,
		})
	})
	mux.HandleFunc("GET /3/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.inc(r.URL.Path)
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"status_code": 34, "status_message": "The resource you requested could not be found."})
			return
		}
		writeJSON(w, map[string]any{
			"id":                id,
			"title":             "Movie " + strconv.Itoa(id),
			"original_language": "ta",
			"poster_path":       "/poster.jpg",
			"videos": map[string]any{"results": []map[string]any{
				{"key": "dQw4w9WgXcQ", "site": "YouTube", "type": "Trailer"},
			}},
		})
	})
	mux.HandleFunc("GET /3/genre/movie/list", func(w http.ResponseWriter, r *http.Request) {
		hits.inc(r.URL.Path)
		writeJSON(w, map[string]any{"genres": []map[string]any{
			{"id": 28, "name": "Action"},
			{"id": 18, "name": "Drama"},
			{"id": 10749, "name": "Romance"},
		}})
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hits.snapshot())
	})

	logger.Info("fake-tmdb listening", "address", *addr)
	log.Fatal(http.ListenAndServe(*addr, middleware.Chain(mux, middleware.AccessLog(logger))))
}
