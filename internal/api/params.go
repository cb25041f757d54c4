package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cinecat/internal/tmdb"
)

// list collects a multi-valued parameter given either repeated
// (languages=hi&languages=ta) or comma separated (languages=hi,ta).
func list(q url.Values, name string) []string {
	var out []string
	for _, raw := range q[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func intList(q url.Values, name string) ([]int, error) {
	var out []int
	for _, v := range list(q, name) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, badParam(name, v)
		}
		out = append(out, n)
	}
	return out, nil
}

// optInt parses a single integer parameter; absent or empty yields 0.
func optInt(q url.Values, name string) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badParam(name, v)
	}
	return n, nil
}

func badParam(name, value string) error {
	return fmt.Errorf("%w: %s=%q is not an integer", tmdb.ErrInvalidArgument, name, value)
}

// parseFilter reads the catalog filter shared by /movies and /tv.
func parseFilter(q url.Values) (tmdb.Filter, error) {
	f := tmdb.Filter{
		Languages:     list(q, "languages"),
		Sort:          tmdb.SortBy(strings.TrimSpace(q.Get("sort"))),
		Runtime:       tmdb.Runtime(strings.TrimSpace(q.Get("runtime"))),
		Certification: strings.TrimSpace(q.Get("certification")),
	}

	var err error
	ints := []struct {
		name string
		dst  *int
	}{
		{"page", &f.Page},
		{"year", &f.Year},
		{"from", &f.YearFrom},
		{"to", &f.YearTo},
	}
	for _, p := range ints {
		if *p.dst, err = optInt(q, p.name); err != nil {
			return f, err
		}
	}

	if f.Providers, err = intList(q, "providers"); err != nil {
		return f, err
	}
	if f.Genres, err = intList(q, "genres"); err != nil {
		return f, err
	}
	return f, nil
}
