package tmdb

import (
	"cmp"
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"cinecat/internal/cache"
)

// PersonPageSize is the page size used when paging a person's TV credits
// locally.
const PersonPageSize = 20

// DiscoverMovies lists movies matching f.
func (c *Client) DiscoverMovies(ctx context.Context, f Filter) (Page[Movie], error) {
	f, err := f.normalize()
	if err != nil {
		return Page[Movie]{}, err
	}
	today := c.today()
	key := movieKey("movies", f, today).String()

	return cache.Fetch(ctx, c.fetcher, "movies", key, func(ctx context.Context) (Page[Movie], error) {
		var page Page[Movie]
		err := c.get(ctx, "/discover/movie", "/discover/movie", c.movieParams(f, today), &page)
		return page, err
	})
}

// DiscoverTV lists TV shows matching f. Runtime and Certification do not
// apply to TV and are ignored.
func (c *Client) DiscoverTV(ctx context.Context, f Filter) (Page[TVShow], error) {
	f.Runtime, f.Certification = RuntimeAny, ""
	f, err := f.normalize()
	if err != nil {
		return Page[TVShow]{}, err
	}
	key := tvKey(f).String()

	return cache.Fetch(ctx, c.fetcher, "tv", key, func(ctx context.Context) (Page[TVShow], error) {
		var page Page[TVShow]
		err := c.get(ctx, "/discover/tv", "/discover/tv", c.tvParams(f), &page)
		return page, err
	})
}

// UpcomingMovies lists releases from today through the next six months.
func (c *Client) UpcomingMovies(ctx context.Context, languages []string, page int) (Page[Movie], error) {
	f, err := Filter{Languages: languages, Page: page}.normalize()
	if err != nil {
		return Page[Movie]{}, err
	}
	today := c.today()
	key := cache.Key("upcoming").
		Strs(f.Languages).
		Int(f.Page).
		Str(today.Format(dateLayout)).
		String()

	return cache.Fetch(ctx, c.fetcher, "upcoming", key, func(ctx context.Context) (Page[Movie], error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(f.Page))
		q.Set("sort_by", "primary_release_date.asc")
		q.Set("primary_release_date.gte", today.Format(dateLayout))
		q.Set("primary_release_date.lte", today.AddDate(0, 6, 0).Format(dateLayout))
		q.Set("region", c.region)
		q.Set("with_original_language", strings.Join(f.Languages, "|"))

		var out Page[Movie]
		err := c.get(ctx, "/discover/movie", "/discover/movie", q, &out)
		return out, err
	})
}

// SearchMovies searches movie titles, keeping only results in the requested
// original languages.
func (c *Client) SearchMovies(ctx context.Context, query string, languages []string) (Page[Movie], error) {
	return search(ctx, c, TypeMovie, query, languages, func(m Movie) string { return m.OriginalLanguage })
}

// SearchTV searches TV show names, keeping only results in the requested
// original languages.
func (c *Client) SearchTV(ctx context.Context, query string, languages []string) (Page[TVShow], error) {
	return search(ctx, c, TypeTV, query, languages, func(s TVShow) string { return s.OriginalLanguage })
}

func search[T any](ctx context.Context, c *Client, t ContentType, query string, languages []string, lang func(T) string) (Page[T], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Page[T]{}, invalid("empty search query")
	}
	langs := normalizeLanguages(languages)
	key := cache.Key("search").Str(string(t)).Str(query).Strs(langs).String()
	endpoint := "/search/" + string(t)

	return cache.Fetch(ctx, c.fetcher, "search", key, func(ctx context.Context) (Page[T], error) {
		q := url.Values{}
		q.Set("query", query)
		q.Set("language", "en-US")

		var page Page[T]
		if err := c.get(ctx, endpoint, endpoint, q, &page); err != nil {
			return page, err
		}

		kept := page.Results[:0]
		for _, r := range page.Results {
			if slices.Contains(langs, lang(r)) {
				kept = append(kept, r)
			}
		}
		page.Results = kept
		return page, nil
	})
}

// Details fetches one title with its videos and watch providers.
func (c *Client) Details(ctx context.Context, t ContentType, id int) (Details, error) {
	if _, err := ParseContentType(string(t)); err != nil {
		return Details{}, err
	}
	if id <= 0 {
		return Details{}, invalid("id %d must be positive", id)
	}
	key := cache.Key("details").Str(string(t)).Int(id).String()

	return cache.Fetch(ctx, c.fetcher, "details", key, func(ctx context.Context) (Details, error) {
		q := url.Values{}
		q.Set("append_to_response", "videos,watch/providers")

		var d Details
		err := c.get(ctx, "/"+string(t)+"/{id}", "/"+string(t)+"/"+strconv.Itoa(id), q, &d)
		return d, err
	})
}

// Genres lists the genre vocabulary for t.
func (c *Client) Genres(ctx context.Context, t ContentType) ([]Genre, error) {
	if _, err := ParseContentType(string(t)); err != nil {
		return nil, err
	}
	key := cache.Key("genres").Str(string(t)).String()
	endpoint := "/genre/" + string(t) + "/list"

	return cache.Fetch(ctx, c.fetcher, "genres", key, func(ctx context.Context) ([]Genre, error) {
		var resp struct {
			Genres []Genre `json:"genres"`
		}
		err := c.get(ctx, endpoint, endpoint, nil, &resp)
		return resp.Genres, err
	})
}

// StreamingProviders lists the watch providers available in the region.
func (c *Client) StreamingProviders(ctx context.Context) ([]Provider, error) {
	key := cache.Key("providers").Str(c.region).String()

	return cache.Fetch(ctx, c.fetcher, "providers", key, func(ctx context.Context) ([]Provider, error) {
		q := url.Values{}
		q.Set("watch_region", c.region)

		var resp struct {
			Results []Provider `json:"results"`
		}
		err := c.get(ctx, "/watch/providers/movie", "/watch/providers/movie", q, &resp)
		return resp.Results, err
	})
}

// Certifications lists the region's movie certifications.
func (c *Client) Certifications(ctx context.Context) ([]Certification, error) {
	key := cache.Key("certifications").Str(c.region).String()

	return cache.Fetch(ctx, c.fetcher, "certifications", key, func(ctx context.Context) ([]Certification, error) {
		var resp struct {
			Certifications map[string][]Certification `json:"certifications"`
		}
		if err := c.get(ctx, "/certification/movie/list", "/certification/movie/list", nil, &resp); err != nil {
			return nil, err
		}
		certs := resp.Certifications[c.region]
		if certs == nil {
			certs = []Certification{}
		}
		return certs, nil
	})
}

// SearchPeople looks up actors and crew by name.
func (c *Client) SearchPeople(ctx context.Context, query string) (Page[Person], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Page[Person]{}, invalid("empty search query")
	}
	key := cache.Key("people").Str(query).String()

	return cache.Fetch(ctx, c.fetcher, "people", key, func(ctx context.Context) (Page[Person], error) {
		q := url.Values{}
		q.Set("query", query)

		var page Page[Person]
		err := c.get(ctx, "/search/person", "/search/person", q, &page)
		return page, err
	})
}

// MoviesByPerson lists movies featuring personID across all languages.
// Languages, Runtime and Certification in f are ignored.
func (c *Client) MoviesByPerson(ctx context.Context, personID int, f Filter) (Page[Movie], error) {
	if personID <= 0 {
		return Page[Movie]{}, invalid("person id %d must be positive", personID)
	}
	f.Languages, f.Runtime, f.Certification = nil, RuntimeAny, ""
	f, err := f.normalize()
	if err != nil {
		return Page[Movie]{}, err
	}
	today := c.today()
	key := movieKey("person-movies", f, today).Int(personID).String()

	return cache.Fetch(ctx, c.fetcher, "person-movies", key, func(ctx context.Context) (Page[Movie], error) {
		q := c.movieParams(f, today)
		q.Del("with_original_language")
		q.Set("with_people", strconv.Itoa(personID))

		var page Page[Movie]
		err := c.get(ctx, "/discover/movie", "/discover/movie", q, &page)
		return page, err
	})
}

// TVByPerson pages through the shows personID appeared in or worked on.
// TMDB cannot discover TV by person, so credits are filtered, sorted and
// paged here. Languages, Providers, Runtime and Certification are ignored.
func (c *Client) TVByPerson(ctx context.Context, personID int, f Filter) (Page[TVShow], error) {
	if personID <= 0 {
		return Page[TVShow]{}, invalid("person id %d must be positive", personID)
	}
	f.Runtime, f.Certification, f.Providers = RuntimeAny, "", nil
	f, err := f.normalize()
	if err != nil {
		return Page[TVShow]{}, err
	}
	key := cache.Key("person-tv").
		Int(personID).
		Int(f.Page).
		Str(f.Sort.param(TypeTV)).
		OptInt(f.Year).
		OptInt(f.YearFrom).
		OptInt(f.YearTo).
		Ints(f.Genres).
		String()

	return cache.Fetch(ctx, c.fetcher, "person-tv", key, func(ctx context.Context) (Page[TVShow], error) {
		var credits tvCredits
		path := "/person/" + strconv.Itoa(personID) + "/tv_credits"
		if err := c.get(ctx, "/person/{id}/tv_credits", path, nil, &credits); err != nil {
			return Page[TVShow]{}, err
		}
		return pageCredits(credits, f), nil
	})
}

func pageCredits(credits tvCredits, f Filter) Page[TVShow] {
	seen := make(map[int]bool)
	var shows []TVShow
	for _, s := range append(credits.Cast, credits.Crew...) {
		if seen[s.ID] || !matchesTV(s, f) {
			continue
		}
		seen[s.ID] = true
		shows = append(shows, s)
	}

	slices.SortStableFunc(shows, func(a, b TVShow) int {
		switch f.Sort {
		case SortRating:
			return cmp.Compare(b.VoteAverage, a.VoteAverage)
		case SortYear:
			return strings.Compare(b.FirstAirDate, a.FirstAirDate)
		default:
			return cmp.Compare(b.Popularity, a.Popularity)
		}
	})

	total := len(shows)
	pages := max(1, (total+PersonPageSize-1)/PersonPageSize)
	start := min((f.Page-1)*PersonPageSize, total)
	end := min(start+PersonPageSize, total)

	return Page[TVShow]{
		Page:         f.Page,
		Results:      slices.Clone(shows[start:end]),
		TotalPages:   pages,
		TotalResults: total,
	}
}

func matchesTV(s TVShow, f Filter) bool {
	for _, g := range f.Genres {
		if !slices.Contains(s.GenreIDs, g) {
			return false
		}
	}

	if !f.hasYear() {
		return true
	}
	if len(s.FirstAirDate) < 4 {
		return false
	}
	year, err := strconv.Atoi(s.FirstAirDate[:4])
	if err != nil {
		return false
	}
	if f.Year != 0 {
		return year == f.Year
	}
	return year >= f.YearFrom && year <= f.YearTo
}
