package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/briefloop/researchcore/errs"
)

// Serper is the serper.dev-backed Capability variant (§9: "capability with
// tagged variants" — {serper, brave, multi}). Its native API accepts a
// country/language pair but no include/exclude-domain parameters, so those
// are folded into the query string via site:/-site: (§4.B).
type Serper struct {
	apiKey  string
	client  *http.Client
	limiter *floorLimiter
}

// NewSerper applies serper's documented rate floor of >=100ms between requests.
func NewSerper(apiKey string) *Serper {
	return &Serper{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newFloorLimiter(100 * time.Millisecond),
	}
}

func (s *Serper) Name() string { return "serper" }

type serperRequest struct {
	Q      string `json:"q"`
	Num    int    `json:"num,omitempty"`
	Page   int    `json:"page,omitempty"`
	Gl     string `json:"gl,omitempty"`
	Hl     string `json:"hl,omitempty"`
	TBS    string `json:"tbs,omitempty"`
}

type serperOrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

type serperResponse struct {
	Organic []serperOrganicResult `json:"organic"`
}

func freshnessToTBS(f Freshness) string {
	switch f {
	case FreshnessPastDay:
		return "qdr:d"
	case FreshnessPastWeek:
		return "qdr:w"
	case FreshnessPastMonth:
		return "qdr:m"
	case FreshnessPastYear:
		return "qdr:y"
	default:
		return ""
	}
}

// tbsFor builds serper's "tbs" time-filter parameter: a named freshness
// bucket when set, else a custom cdr: date range built from
// DateFrom/DateTo (§4.B: Freshness and DateFrom/DateTo are mutually
// exclusive, via freshnessOrDateRange).
func tbsFor(filters SearchFilters) string {
	freshness, dateFrom, dateTo := freshnessOrDateRange(filters)
	if freshness != "" {
		return freshnessToTBS(Freshness(freshness))
	}
	if dateFrom == "" && dateTo == "" {
		return ""
	}
	return fmt.Sprintf("cdr:1,cd_min:%s,cd_max:%s", toTBSDate(dateFrom), toTBSDate(dateTo))
}

// toTBSDate reformats query.go's "2006-01-02" into serper's "MM/DD/YYYY",
// leaving an empty bound empty.
func toTBSDate(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return ""
	}
	return t.Format("01/02/2006")
}

func (s *Serper) Search(ctx context.Context, query string, filters SearchFilters) (*SearchResponse, error) {
	if filters.Normalize() {
		slog.Warn("search/serper: offset not aligned to count, rounded down", slog.Int("offset", filters.Offset))
	}
	s.limiter.wait()

	q := encodeDomainFilters(query, filters.IncludeDomains, filters.ExcludeDomains)
	page := 1
	if filters.Count > 0 {
		page = filters.Offset/filters.Count + 1
	}
	body, err := json.Marshal(serperRequest{
		Q:    q,
		Num:  filters.Count,
		Page: page,
		Gl:   filters.Country,
		Hl:   filters.Language,
		TBS:  tbsFor(filters),
	})
	if err != nil {
		return nil, errs.Wrap(errs.Validation, err, "search/serper: encode request")
	}

	resp, err := doWithRetry(ctx, s.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-KEY", s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return nil, errs.Newf(errs.Transient, "search/serper: status %d: %s", resp.StatusCode, string(b))
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errs.Wrap(errs.ParseFormat, err, "search/serper: decode response")
	}

	items := make([]SearchResultItem, 0, len(sr.Organic))
	for _, r := range sr.Organic {
		items = append(items, SearchResultItem{
			Title:       r.Title,
			URL:         r.Link,
			Description: r.Snippet,
			Meta:        map[string]string{"date": r.Date},
		})
	}
	return &SearchResponse{Query: query, Provider: s.Name(), Items: items}, nil
}

func (s *Serper) SearchMultiple(ctx context.Context, queries []string, filters SearchFilters) (map[string]*SearchResponse, error) {
	return BaseSearchMultiple(ctx, s, queries, filters)
}

var _ Capability = (*Serper)(nil)
