package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cinecat/internal/cache"
	"cinecat/internal/logging"
	"cinecat/internal/metrics"
	"cinecat/internal/telemetry"
	"cinecat/internal/upstream"
)

type Options struct {
	APIKey     string
	Region     string
	Pool       *upstream.Pool
	HTTPClient *http.Client
	Fetcher    *cache.Fetcher
	Logger     logging.Logger
	Now        func() time.Time
}

// Client is the catalog's fetch layer. Every read is looked up in the
// Fetcher's cache before a request is sent.
type Client struct {
	apiKey  string
	region  string
	pool    *upstream.Pool
	http    *http.Client
	fetcher *cache.Fetcher
	logger  logging.Logger
	now     func() time.Time
}

func New(opts Options) *Client {
	c := &Client{
		apiKey:  opts.APIKey,
		region:  opts.Region,
		pool:    opts.Pool,
		http:    opts.HTTPClient,
		fetcher: opts.Fetcher,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if c.region == "" {
		c.region = "IN"
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.fetcher == nil {
		c.fetcher = cache.NewFetcher(nil)
	}
	if c.logger == nil {
		c.logger = logging.Nop{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *Client) today() time.Time {
	return c.now().UTC()
}

// get requests path (relative to the base URL) and decodes the JSON body
// into out. label names the endpoint in metrics and errors without ids.
func (c *Client) get(ctx context.Context, label, path string, params url.Values, out any) (err error) {
	ctx, span := telemetry.Tracer("cinecat/tmdb").Start(ctx, "tmdb "+label,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tmdb.endpoint", label)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ep, err := c.pool.Pick()
	if err != nil {
		return fmt.Errorf("tmdb %s: %w", label, err)
	}

	u := *ep.URL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("tmdb %s: build request: %w", label, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(label, "error", time.Since(start))
		if ctx.Err() == nil {
			c.reportFailure(ep, label, err)
		}
		return fmt.Errorf("tmdb %s: %w", label, err)
	}
	defer resp.Body.Close()

	metrics.ObserveUpstream(label, strconv.Itoa(resp.StatusCode), time.Since(start))
	span.SetAttributes(
		attribute.String("server.address", ep.URL.Host),
		attribute.Int("http.response.status_code", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(label, resp)
		if apiErr.Temporary() {
			c.reportFailure(ep, label, apiErr)
		} else {
			c.pool.ReportSuccess(ep)
		}
		return apiErr
	}
	c.pool.ReportSuccess(ep)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tmdb %s: decode response: %w", label, err)
	}
	return nil
}

func (c *Client) reportFailure(ep *upstream.Endpoint, label string, err error) {
	c.logger.Warn("tmdb request failed",
		"endpoint", label,
		"host", ep.URL.Host,
		"error", err,
	)
	if c.pool.ReportFailure(ep) {
		c.logger.Warn("tmdb circuit opened", "host", ep.URL.Host)
	}
}
