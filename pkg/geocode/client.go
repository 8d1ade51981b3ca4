// Package geocode looks up addresses and place names through the VWorld
// search API.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the production VWorld endpoint.
const DefaultBaseURL = "https://api.vworld.kr"

// ErrMissingKey is returned by NewClient when no API key was configured.
var ErrMissingKey = eris.New("geocode: missing VWorld API key")

// Kind selects the search mode.
type Kind string

const (
	// KindAddress searches road addresses (type=address&category=road).
	KindAddress Kind = "address"
	// KindPlace searches place names (type=place).
	KindPlace Kind = "place"
)

// Client resolves a query to a single location.
//
// A query that finds nothing, or whose response cannot be understood, yields
// a Result with Matched=false and a nil error. Errors are reserved for
// transport failures and non-200 responses. Unmatched results caused by a
// service-side failure report Cacheable() == false.
type Client interface {
	LookupAddress(ctx context.Context, address string) (*Result, error)
	LookupPlace(ctx context.Context, query string) (*Result, error)
}

// Result is the first hit of a search.
type Result struct {
	Matched bool    `json:"matched"`
	Address string  `json:"address,omitempty"`
	Title   string  `json:"title,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`

	unavailable bool
}

// NotFound is the empty, unmatched result.
func NotFound() *Result {
	return &Result{Matched: false}
}

// Unavailable is an unmatched result produced by a service error or an
// unreadable response rather than a definite miss.
func Unavailable() *Result {
	return &Result{Matched: false, unavailable: true}
}

// Cacheable reports whether r may be stored and replayed later.
func (r *Result) Cacheable() bool {
	return r != nil && !r.unavailable
}

// Option configures the client.
type Option func(*vworld)

// WithHTTPClient replaces the HTTP client. The client is copied, so a later
// WithTimeout does not touch the caller's value. nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *vworld) {
		if hc == nil {
			return
		}
		c := *hc
		v.httpClient = &c
	}
}

// WithBaseURL points the client at another host, mostly for tests.
func WithBaseURL(u string) Option {
	return func(v *vworld) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			v.baseURL = u
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(v *vworld) {
		if d > 0 {
			v.httpClient.Timeout = d
		}
	}
}

// NewClient builds a VWorld client for the given API key.
func NewClient(key string, opts ...Option) (Client, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrMissingKey
	}
	v := &vworld{
		key:        key,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}
