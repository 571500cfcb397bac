package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/briefloop/researchcore/llm"
)

// ExtractStageInput is step 5's input: the URLs that survived filtering.
type ExtractStageInput struct {
	URLs []string
}

const defaultExtractConcurrency = 8

// ContentFetcher is the narrow capability step 5 needs: turn a URL into an
// extracted item, never returning an error — failures are encoded in
// FetchStatus so a single bad URL can't abort the errgroup fan-out.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) llm.ExtractedItem
}

// ExtractStage fetches each surviving URL with bounded concurrency and a
// per-fetch timeout (§4.F step 5), modeled on the teacher pack's
// errgroup.WithContext + SetLimit fan-out pattern for controlled-concurrency
// gathering (theRebelliousNerd-codenerd's intelligence gatherer) rather than
// an unbounded goroutine-per-URL loop.
type ExtractStage struct {
	fetcher     ContentFetcher
	concurrency int
}

func NewExtractStage(fetcher ContentFetcher, concurrency int) *ExtractStage {
	if concurrency <= 0 {
		concurrency = defaultExtractConcurrency
	}
	return &ExtractStage{fetcher: fetcher, concurrency: concurrency}
}

func (s *ExtractStage) Run(ctx context.Context, in ExtractStageInput) ([]llm.ExtractedItem, error) {
	results := make([]llm.ExtractedItem, len(in.URLs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, url := range in.URLs {
		i, url := i, url
		eg.Go(func() error {
			results[i] = s.fetcher.Fetch(egCtx, url)
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]llm.ExtractedItem, 0, len(results))
	for _, item := range results {
		if item.FetchStatus == fetchStatusOK {
			out = append(out, item)
		}
	}
	return out, nil
}

var _ Stage[ExtractStageInput, []llm.ExtractedItem] = (*ExtractStage)(nil)

const defaultFetchTimeout = 10 * time.Second
