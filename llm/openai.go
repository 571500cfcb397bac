package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/briefloop/researchcore/errs"
)

// OpenAIProvider is the primary text-completion vendor (§4.C), grounded on
// Tangerg-lynx's ai/extensions/models/openai.Api: a thin wrapper storing a
// constructed *openai.Client and issuing Chat.Completions.New calls per
// request rather than holding per-operation client state.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(options...)
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// callJSON sends a single system+user turn and unmarshals the assistant's
// content as JSON into dest. Wraps transport errors as errs.Transient and
// unmarshal failures as errs.ParseFormat so withRetry's Kind switch applies
// uniformly across vendors.
func (p *OpenAIProvider) callJSON(ctx context.Context, spec ModelSpec, system, user string, dest any) error {
	params := openai.ChatCompletionNewParams{
		Model:       spec.Model,
		Temperature: openai.Float(spec.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if spec.ResponseFormat == "json" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return errs.Wrap(errs.Transient, err, "openai: chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return errs.New(errs.ParseFormat, "openai: empty choices in chat completion")
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return errs.Wrap(errs.ParseFormat, err, "openai: response was not valid JSON")
	}
	return nil
}

func (p *OpenAIProvider) QueryGenerator(spec ModelSpec) QueryGenerator {
	return CallHandlerFunc[QueryGenerationRequest, QueryGenerationResponse](func(ctx context.Context, req QueryGenerationRequest) (QueryGenerationResponse, error) {
		return withRetry(ctx, 3, time.Second, func(ctx context.Context) (QueryGenerationResponse, error) {
			var out QueryGenerationResponse
			err := p.callJSON(ctx, spec, queryGenerationSystemPrompt, buildQueryGenerationPrompt(req), &out)
			return out, err
		})
	})
}

func (p *OpenAIProvider) ResultFilterer(spec ModelSpec) ResultFilterer {
	return CallHandlerFunc[ResultFilterRequest, ResultFilterResponse](func(ctx context.Context, req ResultFilterRequest) (ResultFilterResponse, error) {
		var out ResultFilterResponse
		err := p.callJSON(ctx, spec, resultFilterSystemPrompt, buildResultFilterPrompt(req), &out)
		return out, err
	})
}

func (p *OpenAIProvider) RelevancyScorer(spec ModelSpec) RelevancyScorer {
	return CallHandlerFunc[RelevancyRequest, RelevancyResponse](func(ctx context.Context, req RelevancyRequest) (RelevancyResponse, error) {
		return withRetry(ctx, 3, time.Second, func(ctx context.Context) (RelevancyResponse, error) {
			var out RelevancyResponse
			err := p.callJSON(ctx, spec, relevancySystemPrompt, buildRelevancyPrompt(req), &out)
			return out, err
		})
	})
}

func (p *OpenAIProvider) CrossSourceAnalyzer(spec ModelSpec) CrossSourceAnalyzer {
	return CallHandlerFunc[AnalysisRequest, AnalysisResponse](func(ctx context.Context, req AnalysisRequest) (AnalysisResponse, error) {
		var out AnalysisResponse
		err := p.callJSON(ctx, spec, analysisSystemPrompt, buildAnalysisPrompt(req), &out)
		return out, err
	})
}

func (p *OpenAIProvider) ReportCompiler(spec ModelSpec) ReportCompiler {
	return CallHandlerFunc[ReportRequest, ReportResponse](func(ctx context.Context, req ReportRequest) (ReportResponse, error) {
		return withRetry(ctx, 3, 2*time.Second, func(ctx context.Context) (ReportResponse, error) {
			var out ReportResponse
			err := p.callJSON(ctx, spec, reportSystemPrompt, buildReportPrompt(req), &out)
			return out, err
		})
	})
}

func (p *OpenAIProvider) Translator(spec ModelSpec) Translator {
	return CallHandlerFunc[TranslationRequest, TranslationResponse](func(ctx context.Context, req TranslationRequest) (TranslationResponse, error) {
		var out TranslationResponse
		err := p.callJSON(ctx, spec, translationSystemPrompt, buildTranslationPrompt(req), &out)
		return out, err
	})
}
