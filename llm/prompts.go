package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt text is shared across vendors — only the transport (callJSON)
// differs between OpenAIProvider and AnthropicProvider, matching §4.F's
// operations being vendor-agnostic by design (the pipeline talks to a
// Provider interface, never a vendor SDK directly).

const queryGenerationSystemPrompt = `You generate diverse web search queries for a recurring research project.
Produce queries across four strategies: broad, specific, question, temporal.
Respond with JSON: {"queries":[{"query":"...","strategy":"broad|specific|question|temporal"}]}.`

func buildQueryGenerationPrompt(req QueryGenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Description: %s\n", req.Description)
	fmt.Fprintf(&b, "Current date: %s\n", req.Now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Queries requested: %d\n", req.Count)
	if len(req.PriorityDomains) > 0 {
		fmt.Fprintf(&b, "Priority domains: %s\n", strings.Join(req.PriorityDomains, ", "))
	}
	if len(req.ExcludedDomains) > 0 {
		fmt.Fprintf(&b, "Excluded domains: %s\n", strings.Join(req.ExcludedDomains, ", "))
	}
	if len(req.RequiredKeywords) > 0 {
		fmt.Fprintf(&b, "Required keywords: %s\n", strings.Join(req.RequiredKeywords, ", "))
	}
	if len(req.ExcludedKeywords) > 0 {
		fmt.Fprintf(&b, "Excluded keywords: %s\n", strings.Join(req.ExcludedKeywords, ", "))
	}
	return b.String()
}

const resultFilterSystemPrompt = `You cull obviously irrelevant or low-value search results by title and snippet alone.
Respond with JSON: {"keepUrls":["..."]}. Be inclusive when uncertain.`

func buildResultFilterPrompt(req ResultFilterRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Description: %s\n\nCandidates:\n", req.Description)
	for _, item := range req.Items {
		fmt.Fprintf(&b, "- %s | %s | %s\n", item.URL, item.Title, item.Snippet)
	}
	return b.String()
}

const relevancySystemPrompt = `You score extracted web content against a research description on a 0-100 scale
and extract key points for items that matter. Respond with JSON:
{"items":[{"url":"...","score":0,"keyPoints":["..."]}]}.`

func buildRelevancyPrompt(req RelevancyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Description: %s\n\nItems:\n", req.Description)
	for _, item := range req.Items {
		fmt.Fprintf(&b, "- %s | %s | %s\n", item.URL, item.Title, item.Snippet)
	}
	return b.String()
}

const analysisSystemPrompt = `You analyze a set of relevant, scored research items across sources. Respond with
JSON: {"themes":["..."],"connections":["..."],"contradictions":["..."],"uniqueInsights":["..."],"narrative":"..."}.`

func buildAnalysisPrompt(req AnalysisRequest) string {
	data, _ := json.Marshal(req)
	return string(data)
}

const reportSystemPrompt = `You compile a research report as markdown with sections and a references list at the
end, natural in-text attribution, and no bracketed [n] citation markers in the body. Respond with JSON:
{"markdown":"...","title":"...","summary":"..."}.`

func buildReportPrompt(req ReportRequest) string {
	data, _ := json.Marshal(req)
	return string(data)
}

const translationSystemPrompt = `You translate research report text into the target language, preserving markdown
structure and meaning. Respond with JSON: {"text":"..."}.`

func buildTranslationPrompt(req TranslationRequest) string {
	return fmt.Sprintf("Target language: %s\nKind: %s\n\n%s", req.TargetLanguage, req.Kind, req.Text)
}
