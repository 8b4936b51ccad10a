// Package geocode resolves free-text addresses to coordinates and address
// components via the Google Geocoding API.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes a free-text address. Results come back in provider order,
// best match first; an unresolvable address yields an empty slice, not an
// error.
type Client interface {
	Geocode(ctx context.Context, address string) ([]Result, error)
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AddressComponent is one administrative piece of a geocoded address, tagged
// with the provider's classification types.
type AddressComponent struct {
	LongName string
	Types    []string
}

// Result is one geocoding candidate.
type Result struct {
	Center     Point
	Components []AddressComponent
}

// adminAreaLevel2 is the provider's tag for county-equivalent regions.
const adminAreaLevel2 = "administrative_area_level_2"

// County returns the bare county name from the first component tagged as a
// county-equivalent area, in component order. The trailing " County"
// decoration is stripped to match the adjacency table's naming.
func (r Result) County() (string, bool) {
	for _, c := range r.Components {
		for _, t := range c.Types {
			if t == adminAreaLevel2 {
				return strings.TrimSuffix(c.LongName, " County"), true
			}
		}
	}
	return "", false
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

type geocoder struct {
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter
}

// NewClient creates a geocoding Client using the given Google API key.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(50, 50),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
