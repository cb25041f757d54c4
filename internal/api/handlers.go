package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"cinecat/internal/logging"
	"cinecat/internal/tmdb"
)

const (
	minPeopleQuery = 2
	maxPeople      = 10
)

// Catalog is the read side of the metadata API the handlers serve from.
type Catalog interface {
	DiscoverMovies(ctx context.Context, f tmdb.Filter) (tmdb.Page[tmdb.Movie], error)
	DiscoverTV(ctx context.Context, f tmdb.Filter) (tmdb.Page[tmdb.TVShow], error)
	UpcomingMovies(ctx context.Context, languages []string, page int) (tmdb.Page[tmdb.Movie], error)
	SearchMovies(ctx context.Context, query string, languages []string) (tmdb.Page[tmdb.Movie], error)
	SearchTV(ctx context.Context, query string, languages []string) (tmdb.Page[tmdb.TVShow], error)
	Details(ctx context.Context, t tmdb.ContentType, id int) (tmdb.Details, error)
	Genres(ctx context.Context, t tmdb.ContentType) ([]tmdb.Genre, error)
	StreamingProviders(ctx context.Context) ([]tmdb.Provider, error)
	Certifications(ctx context.Context) ([]tmdb.Certification, error)
	SearchPeople(ctx context.Context, query string) (tmdb.Page[tmdb.Person], error)
	MoviesByPerson(ctx context.Context, personID int, f tmdb.Filter) (tmdb.Page[tmdb.Movie], error)
	TVByPerson(ctx context.Context, personID int, f tmdb.Filter) (tmdb.Page[tmdb.TVShow], error)
}

type handlers struct {
	catalog Catalog
	logger  logging.Logger
}

func (h *handlers) movies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	person, err := optInt(q, "person")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var page tmdb.Page[tmdb.Movie]
	if person != 0 {
		page, err = h.catalog.MoviesByPerson(r.Context(), person, f)
	} else {
		page, err = h.catalog.DiscoverMovies(r.Context(), f)
	}
	h.respond(w, r, page, err)
}

func (h *handlers) tv(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	person, err := optInt(q, "person")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var page tmdb.Page[tmdb.TVShow]
	if person != 0 {
		page, err = h.catalog.TVByPerson(r.Context(), person, f)
	} else {
		page, err = h.catalog.DiscoverTV(r.Context(), f)
	}
	h.respond(w, r, page, err)
}

func (h *handlers) upcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := optInt(q, "page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.catalog.UpcomingMovies(r.Context(), list(q, "languages"), page)
	h.respond(w, r, res, err)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	t, err := tmdb.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	query, langs := q.Get("q"), list(q, "languages")

	if t == tmdb.TypeTV {
		res, err := h.catalog.SearchTV(r.Context(), query, langs)
		h.respond(w, r, res, err)
		return
	}
	res, err := h.catalog.SearchMovies(r.Context(), query, langs)
	h.respond(w, r, res, err)
}

type detailsResponse struct {
	tmdb.Details
	PosterURL   string    `json:"poster_url"`
	ThumbURL    string    `json:"thumb_url"`
	BackdropURL string    `json:"backdrop_url"`
	Trailers    []trailer `json:"trailers"`
}

type trailer struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (h *handlers) details(w http.ResponseWriter, r *http.Request) {
	t, err := tmdb.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, badParam("id", chi.URLParam(r, "id")))
		return
	}

	d, err := h.catalog.Details(r.Context(), t, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := detailsResponse{
		Details:     d,
		PosterURL:   tmdb.ImageURL(d.PosterPath, tmdb.PosterSize),
		ThumbURL:    tmdb.ImageURL(d.PosterPath, tmdb.ThumbSize),
		BackdropURL: tmdb.ImageURL(d.BackdropPath, tmdb.BackdropSize),
		Trailers:    []trailer{},
	}
	for _, v := range d.Trailers() {
		resp.Trailers = append(resp.Trailers, trailer{
			Name:         v.Name,
			URL:          tmdb.YouTubeURL(v.Key),
			ThumbnailURL: tmdb.YouTubeThumbnail(v.Key),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) genres(w http.ResponseWriter, r *http.Request) {
	t, err := tmdb.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.catalog.Genres(r.Context(), t)
	h.respond(w, r, res, err)
}

func (h *handlers) providers(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.StreamingProviders(r.Context())
	h.respond(w, r, res, err)
}

func (h *handlers) certifications(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.Certifications(r.Context())
	h.respond(w, r, res, err)
}

// people answers name lookups with at most maxPeople matches. Queries too
// short to be useful get an empty list without an upstream call.
func (h *handlers) people(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(query)) < minPeopleQuery {
		writeJSON(w, http.StatusOK, []tmdb.Person{})
		return
	}

	page, err := h.catalog.SearchPeople(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	people := page.Results
	if len(people) > maxPeople {
		people = people[:maxPeople]
	}
	if people == nil {
		people = []tmdb.Person{}
	}
	writeJSON(w, http.StatusOK, people)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusBadGateway, "upstream request failed"
	switch {
	case errors.Is(err, tmdb.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, tmdb.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, context.Canceled):
		// The client is gone; the status is only for the access log.
		status, msg = 499, "client closed request"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "upstream timed out"
	}

	if status >= 500 {
		h.logger.Error("catalog request failed",
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
