package upstream

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

func NewTransport() *http.Transport {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}
	http2.ConfigureTransport(tr)
	return tr
}

// NewClient returns a traced client over base. A nil base uses NewTransport.
func NewClient(base http.RoundTripper, timeout time.Duration) *http.Client {
	if base == nil {
		base = NewTransport()
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "tmdb " + r.Method + " " + r.URL.Path
			}),
		),
		Timeout: timeout,
	}
}
