package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/briefloop/researchcore/errs"
)

// AnthropicProvider is the secondary text-completion vendor (§4.C),
// selected per models.<task>.model whenever that model name starts with
// "claude-" (see Router). Mirrors OpenAIProvider's shape: one client, one
// JSON-in/JSON-out call helper, one method per pipeline operation.
type AnthropicProvider struct {
	client *anthropic.Client
}

const anthropicMaxTokens = 4096

func NewAnthropicProvider(apiKey string, opts ...option.RequestOption) *AnthropicProvider {
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(options...)
	return &AnthropicProvider{client: &client}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) callJSON(ctx context.Context, spec ModelSpec, system, user string, dest any) error {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(spec.Model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if spec.Temperature > 0 {
		params.Temperature = anthropic.Float(spec.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return errs.Wrap(errs.Transient, err, "anthropic: message creation failed")
	}

	var text string
	for _, block := range msg.Content {
		if tb := block.AsText(); tb.Text != "" {
			text += tb.Text
		}
	}
	if text == "" {
		return errs.New(errs.ParseFormat, "anthropic: empty content in message response")
	}
	if err := json.Unmarshal([]byte(text), dest); err != nil {
		return errs.Wrap(errs.ParseFormat, err, "anthropic: response was not valid JSON")
	}
	return nil
}

func (p *AnthropicProvider) QueryGenerator(spec ModelSpec) QueryGenerator {
	return CallHandlerFunc[QueryGenerationRequest, QueryGenerationResponse](func(ctx context.Context, req QueryGenerationRequest) (QueryGenerationResponse, error) {
		return withRetry(ctx, 3, time.Second, func(ctx context.Context) (QueryGenerationResponse, error) {
			var out QueryGenerationResponse
			err := p.callJSON(ctx, spec, queryGenerationSystemPrompt, buildQueryGenerationPrompt(req), &out)
			return out, err
		})
	})
}

func (p *AnthropicProvider) ResultFilterer(spec ModelSpec) ResultFilterer {
	return CallHandlerFunc[ResultFilterRequest, ResultFilterResponse](func(ctx context.Context, req ResultFilterRequest) (ResultFilterResponse, error) {
		var out ResultFilterResponse
		err := p.callJSON(ctx, spec, resultFilterSystemPrompt, buildResultFilterPrompt(req), &out)
		return out, err
	})
}

func (p *AnthropicProvider) RelevancyScorer(spec ModelSpec) RelevancyScorer {
	return CallHandlerFunc[RelevancyRequest, RelevancyResponse](func(ctx context.Context, req RelevancyRequest) (RelevancyResponse, error) {
		return withRetry(ctx, 3, time.Second, func(ctx context.Context) (RelevancyResponse, error) {
			var out RelevancyResponse
			err := p.callJSON(ctx, spec, relevancySystemPrompt, buildRelevancyPrompt(req), &out)
			return out, err
		})
	})
}

func (p *AnthropicProvider) CrossSourceAnalyzer(spec ModelSpec) CrossSourceAnalyzer {
	return CallHandlerFunc[AnalysisRequest, AnalysisResponse](func(ctx context.Context, req AnalysisRequest) (AnalysisResponse, error) {
		var out AnalysisResponse
		err := p.callJSON(ctx, spec, analysisSystemPrompt, buildAnalysisPrompt(req), &out)
		return out, err
	})
}

func (p *AnthropicProvider) ReportCompiler(spec ModelSpec) ReportCompiler {
	return CallHandlerFunc[ReportRequest, ReportResponse](func(ctx context.Context, req ReportRequest) (ReportResponse, error) {
		return withRetry(ctx, 3, 2*time.Second, func(ctx context.Context) (ReportResponse, error) {
			var out ReportResponse
			err := p.callJSON(ctx, spec, reportSystemPrompt, buildReportPrompt(req), &out)
			return out, err
		})
	})
}

func (p *AnthropicProvider) Translator(spec ModelSpec) Translator {
	return CallHandlerFunc[TranslationRequest, TranslationResponse](func(ctx context.Context, req TranslationRequest) (TranslationResponse, error) {
		var out TranslationResponse
		err := p.callJSON(ctx, spec, translationSystemPrompt, buildTranslationPrompt(req), &out)
		return out, err
	})
}
