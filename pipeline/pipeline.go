package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/briefloop/researchcore/cache/searchcache"
	"github.com/briefloop/researchcore/config"
	"github.com/briefloop/researchcore/errs"
	"github.com/briefloop/researchcore/llm"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/search"
)

// ModelRouter is the narrow capability Pipeline needs from llm.Router:
// one dispatch method per task plus the clustering capability probe.
// Defined here, at the point of use, so tests can inject a fake router
// over stub capabilities without constructing real vendor clients —
// *llm.Router satisfies this interface structurally.
type ModelRouter interface {
	QueryGenerator(spec llm.ModelSpec) llm.QueryGenerator
	ResultFilterer(spec llm.ModelSpec) llm.ResultFilterer
	RelevancyScorer(spec llm.ModelSpec) llm.RelevancyScorer
	CrossSourceAnalyzer(spec llm.ModelSpec) llm.CrossSourceAnalyzer
	ReportCompiler(spec llm.ModelSpec) llm.ReportCompiler
	Translator(spec llm.ModelSpec) llm.Translator
	Clustering(spec llm.ModelSpec) (llm.TopicClusterer, llm.ClusteredReportCompiler, bool)
}

// Pipeline is the Research Pipeline orchestrator (§4.F): the typed runner
// that wires each step's Stage into the next, gluing together types the
// way flow.Flow's any-erased Join() can't, since every step's input/output
// shape is different.
type Pipeline struct {
	store      project.Store
	router     ModelRouter
	models     config.ModelsConfig
	cfg        config.PipelineConfig
	search     *SearchStage
	extract    *ExtractStage
	cache      *searchcache.Cache
	dedup      *searchcache.Dedup
	capability search.Capability
	fetcher    ContentFetcher
}

func New(store project.Store, router ModelRouter, models config.ModelsConfig, cfg config.PipelineConfig, cache *searchcache.Cache, dedup *searchcache.Dedup, capability search.Capability, fetcher ContentFetcher) *Pipeline {
	return &Pipeline{
		store:      store,
		router:     router,
		models:     models,
		cfg:        cfg,
		search:     NewSearchStage(cache, dedup, capability),
		extract:    NewExtractStage(fetcher, 0),
		cache:      cache,
		dedup:      dedup,
		capability: capability,
		fetcher:    fetcher,
	}
}

// Run executes the 11-step sequence for (userID, projectID) and returns
// either a skip result (project missing/paused/deleted) or a completed
// delivery log. On any non-recoverable failure it marks the project
// status=error, clears researchStartedAt, and propagates the error so the
// caller's broker can retry (§4.F "Failure policy").
func (p *Pipeline) Run(ctx context.Context, userID, projectID string) (*Result, error) {
	started := time.Now()

	// Step 1: load project; missing/paused/deleted is a skip, not a failure.
	proj, err := p.store.Get(ctx, userID, projectID)
	if err != nil {
		return &Result{Skipped: true, SkipReason: "not found"}, nil
	}
	if proj.Status == project.StatusPaused || proj.Status == project.StatusDeleted {
		return &Result{Skipped: true, SkipReason: "status=" + string(proj.Status)}, nil
	}

	result, err := p.run(ctx, proj)
	if err != nil {
		p.failProject(ctx, proj, err)
		return nil, err
	}
	result.DurationMS = time.Since(started).Milliseconds()
	result.Stats.PipelineDurationMS = result.DurationMS
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, proj *project.Project) (*Result, error) {
	var stats project.StatsSummary

	// Step 2: query generation.
	genSpec := modelSpec(p.models.QueryGeneration)
	queries, err := NewQueryGenStage(p.router.QueryGenerator(genSpec)).Run(ctx, QueryGenInput{
		Description: proj.Description,
		Params:      proj.SearchParameters,
		Count:       p.cfg.QueriesPerIteration,
		Now:         time.Now(),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ParseFormat, err, "pipeline: query generation failed")
	}
	stats.QueriesGenerated = len(queries)

	// Step 3: search execution (cache + semantic dedup in front of the
	// multi-provider orchestrator).
	searchOut, err := p.search.Run(ctx, SearchStageInput{
		Queries:         queries,
		Params:          proj.SearchParameters,
		ResultsPerQuery: p.cfg.ResultsPerQuery,
	})
	if err != nil {
		return nil, err
	}
	stats.SearchResults = len(searchOut.Items)
	if failed := searchOut.FailedQueryCount(); failed > 0 {
		slog.Warn("pipeline: some search queries failed", slog.String("projectId", proj.ID), slog.Int("failed", failed), slog.Int("total", searchOut.QueryCount))
	}

	// Step 4: result filtering (best-effort).
	filterSpec := modelSpec(p.models.SearchFiltering)
	keepURLs, err := NewFilterStage(p.router.ResultFilterer(filterSpec)).Run(ctx, FilterStageInput{
		Description: proj.Description,
		Items:       searchOut.Items,
	})
	if err != nil {
		return nil, err
	}

	// Step 5: content extraction, bounded concurrency, drop failures.
	extracted, err := p.extract.Run(ctx, ExtractStageInput{URLs: keepURLs})
	if err != nil {
		return nil, errs.Wrap(errs.Transient, err, "pipeline: content extraction failed")
	}
	stats.ExtractedItems = len(extracted)

	if len(extracted) < p.cfg.MinResults {
		return nil, errs.Newf(errs.ProviderExhausted, "pipeline: only %d items extracted, below minResults=%d", len(extracted), p.cfg.MinResults)
	}
	if p.cfg.MaxResults > 0 && len(extracted) > p.cfg.MaxResults {
		extracted = extracted[:p.cfg.MaxResults]
	}

	// Step 6: relevancy analysis.
	relevancySpec := modelSpec(p.models.RelevancyAnalysis)
	relevant, err := NewRelevancyStage(p.router.RelevancyScorer(relevancySpec)).Run(ctx, RelevancyStageInput{
		Description: proj.Description,
		Items:       extracted,
		Threshold:   p.cfg.RelevancyThreshold,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ParseFormat, err, "pipeline: relevancy analysis failed")
	}
	stats.RelevantItems = len(relevant)

	// Step 7: optional clustering, gated by the capability probe.
	var clusters []llm.TopicCluster
	var clusteredCompiler llm.ClusteredReportCompiler
	if clusterer, compiler, ok := p.router.Clustering(relevancySpec); ok {
		clusters, err = NewClusterStage(clusterer).Run(ctx, ClusterStageInput{Description: proj.Description, Items: relevant})
		if err != nil {
			slog.Warn("pipeline: clustering failed, continuing unclustered", slog.String("err", err.Error()))
			clusters = nil
		} else {
			clusteredCompiler = compiler
		}
	}

	// Step 8: cross-source analysis.
	analysisSpec := modelSpec(p.models.CrossSourceAnalysis)
	analysis, err := NewAnalysisStage(p.router.CrossSourceAnalyzer(analysisSpec)).Run(ctx, AnalysisStageInput{
		Description: proj.Description,
		Items:       relevant,
		Clusters:    clusters,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ProviderExhausted, err, "pipeline: cross-source analysis failed")
	}

	// Step 9: report compilation.
	sources := make(map[string]llm.ExtractedItem, len(extracted))
	for _, item := range extracted {
		sources[item.URL] = item
	}
	reportSpec := modelSpec(p.models.ReportCompilation)
	report, err := NewReportStage(p.router.ReportCompiler(reportSpec), clusteredCompiler).Run(ctx, ReportStageInput{
		Description: proj.Description,
		Analysis:    analysis,
		Items:       relevant,
		Sources:     sources,
		Clusters:    clusters,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ProviderExhausted, err, "pipeline: report compilation failed")
	}

	// Step 10: optional translation.
	if proj.SearchParameters.OutputLanguage != "" && proj.SearchParameters.OutputLanguage != proj.SearchParameters.Language {
		summarySpec := modelSpec(p.models.ReportSummary)
		report, err = NewTranslateStage(p.router.Translator(summarySpec)).Run(ctx, TranslateStageInput{
			Report:         report,
			SearchLanguage: proj.SearchParameters.Language,
			OutputLanguage: proj.SearchParameters.OutputLanguage,
		})
		if err != nil {
			return nil, err
		}
	}

	// Re-check project state before persisting; discard if it changed
	// underneath us (§4.F: "Before writing the delivery log, re-read the
	// project; if it has become paused or deleted, discard the result.").
	fresh, err := p.store.Get(ctx, proj.UserID, proj.ID)
	if err != nil || fresh.Status == project.StatusPaused || fresh.Status == project.StatusDeleted {
		return &Result{Skipped: true, SkipReason: "project changed before persist"}, nil
	}

	// Step 11: persist delivery log in pending status.
	logID := uuid.NewString()
	deliveryLog := &project.DeliveryLog{
		ID:             logID,
		ProjectID:      proj.ID,
		Status:         project.DeliveryLogPending,
		ReportTitle:    report.Title,
		ReportMarkdown: report.Markdown,
		ReportSummary:  report.Summary,
		Stats:          stats,
	}
	if err := p.store.CreateDeliveryLog(ctx, deliveryLog); err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "pipeline: failed to persist delivery log")
	}

	return &Result{DeliveryLogID: logID, Stats: stats}, nil
}

// failProject marks the project status=error with lastError and clears
// researchStartedAt (§4.F "Failure policy"). Persistent-store failures here
// are logged, not retried — the reconciler (§4.J) will eventually converge
// a project stuck in status=running.
func (p *Pipeline) failProject(ctx context.Context, proj *project.Project, cause error) {
	proj.Status = project.StatusError
	proj.LastError = cause.Error()
	proj.ResearchStartedAt = nil
	if updateErr := p.store.Update(ctx, proj); updateErr != nil && !errors.Is(updateErr, project.ErrConflict) {
		slog.Error("pipeline: failed to record project error state", slog.String("projectId", proj.ID), slog.String("err", updateErr.Error()))
	}
}

func modelSpec(m config.ModelConfig) llm.ModelSpec {
	return llm.ModelSpec{Model: m.Model, Temperature: m.Temperature, ResponseFormat: m.ResponseFormat}
}
