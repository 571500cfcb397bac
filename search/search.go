// Package search is the Search Provider Abstraction (§4.B): a unified
// capability for web search with freshness/region/language/site filters,
// backed by third-party HTTP APIs. Modeled on the teacher's CallHandler
// pattern (one typed Call per capability) generalized from AI models to
// search vendors.
package search

import (
	"context"
	"time"
)

type Freshness string

const (
	FreshnessPastDay   Freshness = "pd"
	FreshnessPastWeek  Freshness = "pw"
	FreshnessPastMonth Freshness = "pm"
	FreshnessPastYear  Freshness = "py"
)

// SearchFilters is the closed configuration for a search call (§4.B); no
// loose option map, every recognized field has a name and a type.
type SearchFilters struct {
	Count      int
	Offset     int
	Freshness  Freshness // mutually exclusive with DateFrom/DateTo
	DateFrom   *time.Time
	DateTo     *time.Time
	Country    string
	Language   string
	SafeSearch bool
	IncludeDomains []string
	ExcludeDomains []string
}

// Normalize aligns Offset to Count (rounding down, per §4.B) and reports
// whether it had to adjust anything, so callers can log a warning.
func (f *SearchFilters) Normalize() (adjusted bool) {
	if f.Count <= 0 {
		f.Count = 10
	}
	if f.Offset%f.Count != 0 {
		f.Offset = (f.Offset / f.Count) * f.Count
		adjusted = true
	}
	return adjusted
}

type SearchResultItem struct {
	Title         string
	URL           string
	Description   string
	PublishedDate *time.Time
	Thumbnail     string
	Meta          map[string]string
}

type SearchResponse struct {
	Query    string
	Provider string
	Items    []SearchResultItem
}

// Capability is the operation set every search provider variant (§9 design
// note: "class inheritance for providers -> capability with tagged
// variants") must implement.
type Capability interface {
	Search(ctx context.Context, query string, filters SearchFilters) (*SearchResponse, error)
	SearchMultiple(ctx context.Context, queries []string, filters SearchFilters) (map[string]*SearchResponse, error)
	// Name identifies the provider for health tracking and cache fingerprints.
	Name() string
}

// BaseSearchMultiple gives a Capability implementation a default
// SearchMultiple built from repeated Search calls, matching the teacher's
// pattern of a thin default built atop the single-item primitive.
func BaseSearchMultiple(ctx context.Context, c Capability, queries []string, filters SearchFilters) (map[string]*SearchResponse, error) {
	out := make(map[string]*SearchResponse, len(queries))
	for _, q := range queries {
		resp, err := c.Search(ctx, q, filters)
		if err != nil {
			return nil, err
		}
		out[q] = resp
	}
	return out, nil
}
