package llm

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/briefloop/researchcore/errs"
)

// LangchainEmbedder supplies the Embedder capability (§4.C) via
// tmc/langchaingo's embeddings.Embedder over an OpenAI-compatible
// endpoint, used exclusively by the semantic-dedup index (§4.D) — never by
// the text-completion providers above, and no translation or cross-lingual
// similarity check calls it.
type LangchainEmbedder struct {
	embedder embeddings.Embedder
}

func NewLangchainEmbedder(apiKey, model string) (*LangchainEmbedder, error) {
	llm, err := lcopenai.New(
		lcopenai.WithToken(apiKey),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, err, "llm: failed to construct embedding backend")
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, err, "llm: failed to construct embedder")
	}
	return &LangchainEmbedder{embedder: embedder}, nil
}

// Embed satisfies both this package's Embedder interface and (structurally)
// cache/searchcache.Embedder.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, err, "llm: embedding call failed")
	}
	return vec, nil
}

var _ Embedder = (*LangchainEmbedder)(nil)
