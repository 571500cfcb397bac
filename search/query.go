package search

import "strings"

// encodeDomainFilters appends site:/-site: operators for providers that
// lack native include/exclude-domain parameters (§4.B).
func encodeDomainFilters(query string, include, exclude []string) string {
	var b strings.Builder
	b.WriteString(query)
	for _, d := range include {
		b.WriteString(" site:")
		b.WriteString(d)
	}
	for _, d := range exclude {
		b.WriteString(" -site:")
		b.WriteString(d)
	}
	return b.String()
}

func freshnessOrDateRange(f SearchFilters) (freshness string, dateFrom, dateTo string) {
	if f.Freshness != "" {
		return string(f.Freshness), "", ""
	}
	if f.DateFrom != nil {
		dateFrom = f.DateFrom.Format("2006-01-02")
	}
	if f.DateTo != nil {
		dateTo = f.DateTo.Format("2006-01-02")
	}
	return "", dateFrom, dateTo
}
