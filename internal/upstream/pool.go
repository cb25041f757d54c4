package upstream

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

var ErrNoEndpoints = errors.New("upstream: no available endpoints")

// Endpoint is one base URL of the metadata API.
type Endpoint struct {
	URL *url.URL

	failures         int
	circuitOpenUntil time.Time
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures int
	Cooldown            time.Duration
}

// Pool rotates across base URLs and skips any whose circuit is open.
type Pool struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	idx       int
	cb        *CircuitBreakerConfig
	now       func() time.Time
}

// NewPool parses baseURLs. A nil cb disables the circuit breaker.
func NewPool(baseURLs []string, cb *CircuitBreakerConfig) (*Pool, error) {
	if len(baseURLs) == 0 {
		return nil, errors.New("upstream: at least one base URL is required")
	}

	endpoints := make([]*Endpoint, 0, len(baseURLs))
	for _, raw := range baseURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", raw, err)
		}
		endpoints = append(endpoints, &Endpoint{URL: u})
	}

	return &Pool{
		endpoints: endpoints,
		cb:        cb,
		now:       time.Now,
	}, nil
}

func (p *Pool) Pick() (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	now := p.now()

	for i := 0; i < n; i++ {
		ep := p.endpoints[p.idx]
		p.idx = (p.idx + 1) % n

		if !ep.circuitOpenUntil.IsZero() && now.Before(ep.circuitOpenUntil) {
			continue
		}

		if !ep.circuitOpenUntil.IsZero() {
			ep.circuitOpenUntil = time.Time{}
			ep.failures = 0
		}
		return ep, nil
	}

	return nil, ErrNoEndpoints
}

func (p *Pool) ReportSuccess(ep *Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep.failures = 0
}

// ReportFailure counts a consecutive failure and reports whether it opened
// the endpoint's circuit.
func (p *Pool) ReportFailure(ep *Endpoint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep.failures++
	if p.cb == nil || ep.failures < p.cb.ConsecutiveFailures {
		return false
	}

	now := p.now()
	wasOpen := !ep.circuitOpenUntil.IsZero() && now.Before(ep.circuitOpenUntil)
	ep.circuitOpenUntil = now.Add(p.cb.Cooldown)
	return !wasOpen
}

// OpenCircuits counts endpoints currently refusing traffic.
func (p *Pool) OpenCircuits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openCircuits(p.now())
}

func (p *Pool) openCircuits(now time.Time) int {
	open := 0
	for _, ep := range p.endpoints {
		if !ep.circuitOpenUntil.IsZero() && now.Before(ep.circuitOpenUntil) {
			open++
		}
	}
	return open
}
