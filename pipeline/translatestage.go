package pipeline

import (
	"context"

	"github.com/briefloop/researchcore/errs"
	"github.com/briefloop/researchcore/llm"
)

// TranslateStageInput is step 10's input: the compiled report plus the
// language the search ran in and the project's requested output language.
// When the two match, the stage is a no-op passthrough.
type TranslateStageInput struct {
	Report         llm.ReportResponse
	SearchLanguage string
	OutputLanguage string
}

// TranslateStage translates the long-form markdown and, separately, the
// short title/summary pair (same token limit as the body) when outputLanguage differs
// from the search language. Unknown language codes fail fast, before any
// LLM call (§4.F step 10), via errs.Validation so the worker does not
// retry a call that can never succeed.
type TranslateStage struct {
	translator llm.Translator
}

func NewTranslateStage(translator llm.Translator) *TranslateStage {
	return &TranslateStage{translator: translator}
}

func (s *TranslateStage) Run(ctx context.Context, in TranslateStageInput) (llm.ReportResponse, error) {
	if in.OutputLanguage == "" || in.OutputLanguage == in.SearchLanguage {
		return in.Report, nil
	}
	if !languageAllowed(in.OutputLanguage) {
		return llm.ReportResponse{}, errs.Newf(errs.Validation, "pipeline: unsupported output language %q", in.OutputLanguage)
	}

	bodyResp, err := s.translator.Call(ctx, llm.TranslationRequest{
		Text:           in.Report.Markdown,
		Kind:           llm.TranslationBody,
		TargetLanguage: in.OutputLanguage,
	})
	if err != nil {
		return llm.ReportResponse{}, err
	}

	summaryText := in.Report.Title + "\n" + in.Report.Summary
	summaryResp, err := s.translator.Call(ctx, llm.TranslationRequest{
		Text:           summaryText,
		Kind:           llm.TranslationSummary,
		TargetLanguage: in.OutputLanguage,
	})
	if err != nil {
		return llm.ReportResponse{}, err
	}

	title, summary := splitTitleSummary(summaryResp.Text, in.Report.Title, in.Report.Summary)
	return llm.ReportResponse{Markdown: bodyResp.Text, Title: title, Summary: summary}, nil
}

// splitTitleSummary recovers {title, summary} from the single translated
// "title\nsummary" blob, falling back to the original-language pair if the
// translation dropped the separator.
func splitTitleSummary(translated, origTitle, origSummary string) (title, summary string) {
	for i := 0; i < len(translated); i++ {
		if translated[i] == '\n' {
			return translated[:i], translated[i+1:]
		}
	}
	return origTitle, origSummary
}

var _ Stage[TranslateStageInput, llm.ReportResponse] = (*TranslateStage)(nil)
