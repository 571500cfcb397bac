package pipeline

import "github.com/briefloop/researchcore/project"

// Result is what the worker (§4.H) gets back from a pipeline run: either a
// skip (project vanished, paused, or deleted — not a failure) or a
// completed delivery log with the counts the teacher's StatsSummary
// already tracks.
type Result struct {
	Skipped       bool
	SkipReason    string
	DeliveryLogID string
	DurationMS    int64
	Stats         project.StatsSummary
}

// languageWhitelist is the closed set of ISO 639-1 codes translation
// (§4.F step 10) accepts; an outputLanguage outside this set fails fast,
// before any LLM call is made.
var languageWhitelist = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "it": true,
	"pt": true, "nl": true, "ja": true, "zh": true, "ko": true,
	"ru": true, "ar": true, "hi": true, "pl": true, "sv": true,
}

func languageAllowed(code string) bool {
	return languageWhitelist[code]
}
