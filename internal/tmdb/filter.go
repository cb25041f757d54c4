package tmdb

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"cinecat/internal/cache"
)

// MaxPage is the last page TMDB serves for any listing.
const MaxPage = 500

// Years outside MinYear..MaxYear are rejected.
const (
	MinYear = 1
	MaxYear = 9999
)

const dateLayout = "2006-01-02"

// IndianLanguages are the original languages browsed when no language
// filter is given.
var IndianLanguages = []string{"hi", "kn", "ml", "ta", "te"}

type ContentType string

const (
	TypeMovie ContentType = "movie"
	TypeTV    ContentType = "tv"
)

func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case TypeMovie, TypeTV:
		return ContentType(s), nil
	}
	return "", invalid("content type %q, want movie or tv", s)
}

type SortBy string

const (
	SortPopularity SortBy = "popularity"
	SortRating     SortBy = "rating"
	SortYear       SortBy = "year"
)

// param maps the sort onto the TMDB sort_by value for t.
func (s SortBy) param(t ContentType) string {
	switch s {
	case SortRating:
		return "vote_average.desc"
	case SortYear:
		if t == TypeTV {
			return "first_air_date.desc"
		}
		return "primary_release_date.desc"
	default:
		return "popularity.desc"
	}
}

type Runtime string

const (
	RuntimeAny    Runtime = ""
	RuntimeShort  Runtime = "short"
	RuntimeMedium Runtime = "medium"
	RuntimeLong   Runtime = "long"
)

// Filter narrows a catalog listing. Zero values mean "no filter". Year wins
// over YearFrom/YearTo when both are set.
type Filter struct {
	Languages     []string
	Page          int
	Sort          SortBy
	Year          int
	YearFrom      int
	YearTo        int
	Providers     []int
	Genres        []int
	Runtime       Runtime
	Certification string
}

// normalize fills defaults and drops inputs that cannot change the
// response, so that equivalent filters share a cache key.
func (f Filter) normalize() (Filter, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Page < 1 || f.Page > MaxPage {
		return f, invalid("page %d outside 1..%d", f.Page, MaxPage)
	}

	switch f.Sort {
	case "":
		f.Sort = SortPopularity
	case SortPopularity, SortRating, SortYear:
	default:
		return f, invalid("sort %q, want popularity, rating or year", f.Sort)
	}

	switch f.Runtime {
	case RuntimeAny, RuntimeShort, RuntimeMedium, RuntimeLong:
	case "all":
		f.Runtime = RuntimeAny
	default:
		return f, invalid("runtime %q, want short, medium or long", f.Runtime)
	}

	for _, y := range []int{f.Year, f.YearFrom, f.YearTo} {
		if y != 0 && (y < MinYear || y > MaxYear) {
			return f, invalid("year %d outside %d..%d", y, MinYear, MaxYear)
		}
	}

	if f.Year != 0 {
		f.YearFrom, f.YearTo = 0, 0
	} else if f.YearFrom != 0 || f.YearTo != 0 {
		if f.YearFrom == 0 || f.YearTo == 0 {
			return f, invalid("year range needs both ends")
		}
		if f.YearFrom > f.YearTo {
			return f, invalid("year range %d..%d is reversed", f.YearFrom, f.YearTo)
		}
	}

	f.Languages = normalizeLanguages(f.Languages)
	f.Providers = sortedInts(f.Providers)
	f.Genres = sortedInts(f.Genres)
	f.Certification = strings.TrimSpace(f.Certification)
	return f, nil
}

func (f Filter) hasYear() bool {
	return f.Year != 0 || f.YearFrom != 0
}

// normalizeLanguages returns the sorted set of language codes, expanding an
// empty list or "all" to IndianLanguages.
func normalizeLanguages(langs []string) []string {
	var out []string
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || l == "all" {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return slices.Clone(IndianLanguages)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func sortedInts(vs []int) []int {
	if len(vs) == 0 {
		return nil
	}
	out := slices.Clone(vs)
	slices.Sort(out)
	return slices.Compact(out)
}

func joinInts(vs []int, sep string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

// movieParams builds the /discover/movie query. today is only consulted for
// the release-date sort; movieKey records it in exactly that case.
func (c *Client) movieParams(f Filter, today time.Time) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("sort_by", f.Sort.param(TypeMovie))
	q.Set("region", c.region)

	if f.Sort == SortYear {
		q.Set("primary_release_date.lte", today.Format(dateLayout))
		if !f.hasYear() {
			q.Set("primary_release_date.gte", "2020-01-01")
		} else {
			q.Set("vote_count.gte", "1")
		}
	} else {
		q.Set("vote_count.gte", "10")
	}

	q.Set("with_original_language", strings.Join(f.Languages, "|"))

	if f.Year != 0 {
		q.Set("primary_release_year", strconv.Itoa(f.Year))
	} else if f.YearFrom != 0 {
		q.Set("primary_release_date.gte", strconv.Itoa(f.YearFrom)+"-01-01")
		q.Set("primary_release_date.lte", strconv.Itoa(f.YearTo)+"-12-31")
	}

	c.addCommonParams(q, f)

	switch f.Runtime {
	case RuntimeShort:
		q.Set("with_runtime.lte", "120")
	case RuntimeMedium:
		q.Set("with_runtime.gte", "120")
		q.Set("with_runtime.lte", "180")
	case RuntimeLong:
		q.Set("with_runtime.gte", "180")
	}

	if f.Certification != "" {
		q.Set("certification_country", c.region)
		q.Set("certification", f.Certification)
	}
	return q
}

func movieKey(op string, f Filter, today time.Time) *cache.KeyBuilder {
	date := ""
	if f.Sort == SortYear {
		date = today.Format(dateLayout)
	}
	return cache.Key(op).
		Strs(f.Languages).
		Int(f.Page).
		Str(f.Sort.param(TypeMovie)).
		OptInt(f.Year).
		OptInt(f.YearFrom).
		OptInt(f.YearTo).
		Ints(f.Providers).
		Ints(f.Genres).
		Str(string(f.Runtime)).
		Str(f.Certification).
		Str(date)
}

func (c *Client) tvParams(f Filter) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("sort_by", f.Sort.param(TypeTV))
	q.Set("vote_count.gte", "10")
	q.Set("with_original_language", strings.Join(f.Languages, "|"))

	if f.Year != 0 {
		q.Set("first_air_date_year", strconv.Itoa(f.Year))
	} else if f.YearFrom != 0 {
		q.Set("first_air_date.gte", strconv.Itoa(f.YearFrom)+"-01-01")
		q.Set("first_air_date.lte", strconv.Itoa(f.YearTo)+"-12-31")
	}

	c.addCommonParams(q, f)
	return q
}

// tvKey leaves out runtime and certification, which TV discovery ignores.
func tvKey(f Filter) *cache.KeyBuilder {
	return cache.Key("tv").
		Strs(f.Languages).
		Int(f.Page).
		Str(f.Sort.param(TypeTV)).
		OptInt(f.Year).
		OptInt(f.YearFrom).
		OptInt(f.YearTo).
		Ints(f.Providers).
		Ints(f.Genres)
}

func (c *Client) addCommonParams(q url.Values, f Filter) {
	if len(f.Providers) > 0 {
		q.Set("with_watch_providers", joinInts(f.Providers, "|"))
		q.Set("watch_region", c.region)
	}
	if len(f.Genres) > 0 {
		q.Set("with_genres", joinInts(f.Genres, ","))
	}
}
