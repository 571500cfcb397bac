package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/briefloop/researchcore/errs"
)

// Brave is the Brave Search API-backed Capability variant. Brave's floor
// is the more conservative of the two vendors named in §4.B (>=500ms).
type Brave struct {
	apiKey  string
	client  *http.Client
	limiter *floorLimiter
}

func NewBrave(apiKey string) *Brave {
	return &Brave{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newFloorLimiter(500 * time.Millisecond),
	}
}

func (b *Brave) Name() string { return "brave" }

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
}

type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

func freshnessToBraveParam(f Freshness) string {
	switch f {
	case FreshnessPastDay:
		return "pd"
	case FreshnessPastWeek:
		return "pw"
	case FreshnessPastMonth:
		return "pm"
	case FreshnessPastYear:
		return "py"
	default:
		return ""
	}
}

// braveFreshnessParam builds Brave's "freshness" parameter: a named bucket
// when set, else its "YYYY-MM-DDtoYYYY-MM-DD" custom range built from
// DateFrom/DateTo (§4.B, via freshnessOrDateRange). An open-ended range
// (only one of the two bounds set) isn't expressible in Brave's format, so
// it's dropped rather than sent malformed.
func braveFreshnessParam(filters SearchFilters) string {
	freshness, dateFrom, dateTo := freshnessOrDateRange(filters)
	if freshness != "" {
		return freshnessToBraveParam(Freshness(freshness))
	}
	if dateFrom == "" || dateTo == "" {
		return ""
	}
	return dateFrom + "to" + dateTo
}

func (b *Brave) Search(ctx context.Context, query string, filters SearchFilters) (*SearchResponse, error) {
	if filters.Normalize() {
		slog.Warn("search/brave: offset not aligned to count, rounded down", slog.Int("offset", filters.Offset))
	}
	b.limiter.wait()

	q := encodeDomainFilters(query, filters.IncludeDomains, filters.ExcludeDomains)

	qs := url.Values{}
	qs.Set("q", q)
	if filters.Count > 0 {
		qs.Set("count", strconv.Itoa(filters.Count))
	}
	if filters.Offset > 0 && filters.Count > 0 {
		qs.Set("offset", strconv.Itoa(filters.Offset/filters.Count))
	}
	if filters.Country != "" {
		qs.Set("country", filters.Country)
	}
	if filters.Language != "" {
		qs.Set("search_lang", filters.Language)
	}
	if fr := braveFreshnessParam(filters); fr != "" {
		qs.Set("freshness", fr)
	}
	if !filters.SafeSearch {
		qs.Set("safesearch", "off")
	}

	resp, err := doWithRetry(ctx, b.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.search.brave.com/res/v1/web/search?"+qs.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Subscription-Token", b.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.Newf(errs.Transient, "search/brave: status %d: %s", resp.StatusCode, string(body))
	}

	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, errs.Wrap(errs.ParseFormat, err, "search/brave: decode response")
	}

	items := make([]SearchResultItem, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		items = append(items, SearchResultItem{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Meta:        map[string]string{"age": r.Age},
		})
	}
	return &SearchResponse{Query: query, Provider: b.Name(), Items: items}, nil
}

func (b *Brave) SearchMultiple(ctx context.Context, queries []string, filters SearchFilters) (map[string]*SearchResponse, error) {
	return BaseSearchMultiple(ctx, b, queries, filters)
}

var _ Capability = (*Brave)(nil)
