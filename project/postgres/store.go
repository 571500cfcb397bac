// Package postgres is the durable project.Store implementation: pgx's
// stdlib driver under sqlx for row scanning, schema managed by goose
// migrations (migrations.go), grounded on the pgx/v5-stdlib-plus-sqlx
// pattern the retrieved example pack's datastorage integration tests use
// ("DD-010: Using pgx driver with sqlx").
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/briefloop/researchcore/errs"
	"github.com/briefloop/researchcore/project"
)

// stringSlice stores a []string as a JSON array in a single TEXT column —
// simpler and more portable than a native Postgres TEXT[] scan/encode path,
// and the lists involved (priority/excluded domains, keywords) are small.
type stringSlice []string

func (s *stringSlice) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("project/postgres: cannot scan %T into stringSlice", src)
	}
	if len(b) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(b, s)
}

func (s stringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type Store struct {
	db *sqlx.DB
}

// Open connects with sqlx over the pgx stdlib driver and applies pending
// migrations before returning.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: connect")
	}
	if err := Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: migrate")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type projectRow struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	Title       string `db:"title"`
	Description string `db:"description"`

	Frequency    string `db:"frequency"`
	DeliveryTime string `db:"delivery_time"`
	Timezone     string `db:"timezone"`
	DayOfWeek    int    `db:"day_of_week"`
	DayOfMonth   int    `db:"day_of_month"`

	Status string `db:"status"`

	PriorityDomains     stringSlice `db:"priority_domains"`
	ExcludedDomains     stringSlice `db:"excluded_domains"`
	RequiredKeywords    stringSlice `db:"required_keywords"`
	ExcludedKeywords    stringSlice `db:"excluded_keywords"`
	Language            string         `db:"language"`
	Region              string         `db:"region"`
	OutputLanguage      string         `db:"output_language"`
	DateRangePreference string         `db:"date_range_preference"`

	NextRunAt             sql.NullTime `db:"next_run_at"`
	LastRunAt             sql.NullTime `db:"last_run_at"`
	ResearchStartedAt     sql.NullTime `db:"research_started_at"`
	PreparedDeliveryLogID sql.NullString `db:"prepared_delivery_log_id"`
	PreparedAt            sql.NullTime `db:"prepared_at"`
	DeliveredAt           sql.NullTime `db:"delivered_at"`
	LastError             string       `db:"last_error"`
	ThisRunIsOneShot      bool         `db:"this_run_is_one_shot"`
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func ptrFromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func toRow(p *project.Project) projectRow {
	return projectRow{
		ID:                  p.ID,
		UserID:              p.UserID,
		Title:               p.Title,
		Description:         p.Description,
		Frequency:           string(p.Frequency),
		DeliveryTime:        p.DeliveryTime,
		Timezone:            p.Timezone,
		DayOfWeek:           p.DayOfWeek,
		DayOfMonth:          p.DayOfMonth,
		Status:              string(p.Status),
		PriorityDomains:     stringSlice(p.SearchParameters.PriorityDomains),
		ExcludedDomains:     stringSlice(p.SearchParameters.ExcludedDomains),
		RequiredKeywords:    stringSlice(p.SearchParameters.RequiredKeywords),
		ExcludedKeywords:    stringSlice(p.SearchParameters.ExcludedKeywords),
		Language:            p.SearchParameters.Language,
		Region:              p.SearchParameters.Region,
		OutputLanguage:      p.SearchParameters.OutputLanguage,
		DateRangePreference: string(p.SearchParameters.DateRangePreference),
		NextRunAt:           nullTimePtr(p.NextRunAt),
		LastRunAt:           nullTimePtr(p.LastRunAt),
		ResearchStartedAt:   nullTimePtr(p.ResearchStartedAt),
		PreparedDeliveryLogID: nullStringPtr(p.PreparedDeliveryLogID),
		PreparedAt:          nullTimePtr(p.PreparedAt),
		DeliveredAt:         nullTimePtr(p.DeliveredAt),
		LastError:           p.LastError,
		ThisRunIsOneShot:    p.ThisRunIsOneShot,
	}
}

func (r projectRow) toDomain() *project.Project {
	return &project.Project{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Frequency:   project.Frequency(r.Frequency),
		DeliveryTime: r.DeliveryTime,
		Timezone:    r.Timezone,
		DayOfWeek:   r.DayOfWeek,
		DayOfMonth:  r.DayOfMonth,
		Status:      project.Status(r.Status),
		SearchParameters: project.SearchParameters{
			PriorityDomains:     []string(r.PriorityDomains),
			ExcludedDomains:     []string(r.ExcludedDomains),
			RequiredKeywords:    []string(r.RequiredKeywords),
			ExcludedKeywords:    []string(r.ExcludedKeywords),
			Language:            r.Language,
			Region:              r.Region,
			OutputLanguage:      r.OutputLanguage,
			DateRangePreference: project.Freshness(r.DateRangePreference),
		},
		NextRunAt:             ptrFromNullTime(r.NextRunAt),
		LastRunAt:             ptrFromNullTime(r.LastRunAt),
		ResearchStartedAt:     ptrFromNullTime(r.ResearchStartedAt),
		PreparedDeliveryLogID: ptrFromNullString(r.PreparedDeliveryLogID),
		PreparedAt:            ptrFromNullTime(r.PreparedAt),
		DeliveredAt:           ptrFromNullTime(r.DeliveredAt),
		LastError:             r.LastError,
		ThisRunIsOneShot:      r.ThisRunIsOneShot,
	}
}

const projectColumns = `
	id, user_id, title, description, frequency, delivery_time, timezone, day_of_week, day_of_month,
	status, priority_domains, excluded_domains, required_keywords, excluded_keywords, language, region,
	output_language, date_range_preference, next_run_at, last_run_at, research_started_at,
	prepared_delivery_log_id, prepared_at, delivered_at, last_error, this_run_is_one_shot`

func (s *Store) Get(ctx context.Context, userID, projectID string) (*project.Project, error) {
	var row projectRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err == sql.ErrNoRows {
		return nil, project.ErrConflict
	}
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: get")
	}
	return row.toDomain(), nil
}

func (s *Store) Create(ctx context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r := toRow(p)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (:id, :user_id, :title, :description, :frequency, :delivery_time, :timezone,
			:day_of_week, :day_of_month, :status, :priority_domains, :excluded_domains,
			:required_keywords, :excluded_keywords, :language, :region, :output_language,
			:date_range_preference, :next_run_at, :last_run_at, :research_started_at,
			:prepared_delivery_log_id, :prepared_at, :delivered_at, :last_error, :this_run_is_one_shot)
	`, r)
	if err != nil {
		return errs.Wrap(errs.Persistent, err, "project/postgres: create")
	}
	return nil
}

func (s *Store) Update(ctx context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r := toRow(p)
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE projects SET
			title = :title, description = :description, frequency = :frequency,
			delivery_time = :delivery_time, timezone = :timezone, day_of_week = :day_of_week,
			day_of_month = :day_of_month, status = :status, priority_domains = :priority_domains,
			excluded_domains = :excluded_domains, required_keywords = :required_keywords,
			excluded_keywords = :excluded_keywords, language = :language, region = :region,
			output_language = :output_language, date_range_preference = :date_range_preference,
			next_run_at = :next_run_at, last_run_at = :last_run_at,
			research_started_at = :research_started_at,
			prepared_delivery_log_id = :prepared_delivery_log_id, prepared_at = :prepared_at,
			delivered_at = :delivered_at, last_error = :last_error,
			this_run_is_one_shot = :this_run_is_one_shot, updated_at = now()
		WHERE id = :id
	`, r)
	if err != nil {
		return errs.Wrap(errs.Persistent, err, "project/postgres: update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Persistent, err, "project/postgres: update rows affected")
	}
	if n == 0 {
		return project.ErrConflict
	}
	return nil
}

type deliveryLogRow struct {
	ID             string         `db:"id"`
	ProjectID      string         `db:"project_id"`
	Status         string         `db:"status"`
	ReportTitle    string         `db:"report_title"`
	ReportMarkdown string         `db:"report_markdown"`
	ReportSummary  string         `db:"report_summary"`
	DeliveredAt    sql.NullTime   `db:"delivered_at"`
	RetryCount     int            `db:"retry_count"`

	StatQueriesGenerated   int     `db:"stat_queries_generated"`
	StatSearchResults      int     `db:"stat_search_results"`
	StatExtractedItems     int     `db:"stat_extracted_items"`
	StatRelevantItems      int     `db:"stat_relevant_items"`
	StatPipelineDurationMS int64   `db:"stat_pipeline_duration_ms"`
	StatEstimatedCostUSD   float64 `db:"stat_estimated_cost_usd"`

	Error string `db:"error"`
}

func toLogRow(d *project.DeliveryLog) deliveryLogRow {
	return deliveryLogRow{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		Status:         string(d.Status),
		ReportTitle:    d.ReportTitle,
		ReportMarkdown: d.ReportMarkdown,
		ReportSummary:  d.ReportSummary,
		DeliveredAt:    nullTimePtr(d.DeliveredAt),
		RetryCount:     d.RetryCount,

		StatQueriesGenerated:   d.Stats.QueriesGenerated,
		StatSearchResults:      d.Stats.SearchResults,
		StatExtractedItems:     d.Stats.ExtractedItems,
		StatRelevantItems:      d.Stats.RelevantItems,
		StatPipelineDurationMS: d.Stats.PipelineDurationMS,
		StatEstimatedCostUSD:   d.Stats.EstimatedCostUSD,

		Error: d.Error,
	}
}

func (r deliveryLogRow) toDomain() *project.DeliveryLog {
	return &project.DeliveryLog{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Status:         project.DeliveryLogStatus(r.Status),
		ReportTitle:    r.ReportTitle,
		ReportMarkdown: r.ReportMarkdown,
		ReportSummary:  r.ReportSummary,
		DeliveredAt:    ptrFromNullTime(r.DeliveredAt),
		RetryCount:     r.RetryCount,
		Stats: project.StatsSummary{
			QueriesGenerated:   r.StatQueriesGenerated,
			SearchResults:      r.StatSearchResults,
			ExtractedItems:     r.StatExtractedItems,
			RelevantItems:      r.StatRelevantItems,
			PipelineDurationMS: r.StatPipelineDurationMS,
			EstimatedCostUSD:   r.StatEstimatedCostUSD,
		},
		Error: r.Error,
	}
}

const deliveryLogColumns = `
	id, project_id, status, report_title, report_markdown, report_summary, delivered_at, retry_count,
	stat_queries_generated, stat_search_results, stat_extracted_items, stat_relevant_items,
	stat_pipeline_duration_ms, stat_estimated_cost_usd, error`

func (s *Store) GetDeliveryLog(ctx context.Context, id string) (*project.DeliveryLog, error) {
	var row deliveryLogRow
	err := s.db.GetContext(ctx, &row, `SELECT `+deliveryLogColumns+` FROM delivery_logs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, project.ErrConflict
	}
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: get delivery log")
	}
	return row.toDomain(), nil
}

func (s *Store) CreateDeliveryLog(ctx context.Context, d *project.DeliveryLog) error {
	r := toLogRow(d)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO delivery_logs (`+deliveryLogColumns+`)
		VALUES (:id, :project_id, :status, :report_title, :report_markdown, :report_summary,
			:delivered_at, :retry_count, :stat_queries_generated, :stat_search_results,
			:stat_extracted_items, :stat_relevant_items, :stat_pipeline_duration_ms,
			:stat_estimated_cost_usd, :error)
	`, r)
	if err != nil {
		return errs.Wrap(errs.Persistent, err, "project/postgres: create delivery log")
	}
	return nil
}

func (s *Store) UpdateDeliveryLog(ctx context.Context, d *project.DeliveryLog) error {
	r := toLogRow(d)
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE delivery_logs SET
			status = :status, report_title = :report_title, report_markdown = :report_markdown,
			report_summary = :report_summary, delivered_at = :delivered_at, retry_count = :retry_count,
			stat_queries_generated = :stat_queries_generated, stat_search_results = :stat_search_results,
			stat_extracted_items = :stat_extracted_items, stat_relevant_items = :stat_relevant_items,
			stat_pipeline_duration_ms = :stat_pipeline_duration_ms,
			stat_estimated_cost_usd = :stat_estimated_cost_usd, error = :error
		WHERE id = :id
	`, r)
	if err != nil {
		return errs.Wrap(errs.Persistent, err, "project/postgres: update delivery log")
	}
	return nil
}

func (s *Store) QueryPreRun(ctx context.Context, now time.Time, window time.Duration) ([]*project.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+projectColumns+` FROM projects
		WHERE status IN ('active','error') AND prepared_delivery_log_id IS NULL
		  AND next_run_at > $1 AND next_run_at <= $2
	`, now, now.Add(window))
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: query pre-run")
	}
	return toDomainSlice(rows), nil
}

func (s *Store) QueryRetry(ctx context.Context, now time.Time) ([]*project.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+projectColumns+` FROM projects
		WHERE status IN ('active','error') AND prepared_delivery_log_id IS NULL
		  AND next_run_at <= $1
	`, now)
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: query retry")
	}
	return toDomainSlice(rows), nil
}

func (s *Store) QueryNeedsDelivery(ctx context.Context, now time.Time) ([]*project.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+projectColumns+` FROM projects
		WHERE prepared_delivery_log_id IS NOT NULL
		  AND (next_run_at IS NULL OR next_run_at <= $1)
	`, now)
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: query needs delivery")
	}
	return toDomainSlice(rows), nil
}

func (s *Store) QueryNeedsResearch(ctx context.Context) ([]*project.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+projectColumns+` FROM projects
		WHERE status IN ('active','error') AND prepared_delivery_log_id IS NULL
	`)
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: query needs research")
	}
	return toDomainSlice(rows), nil
}

func (s *Store) QueryStuckRunning(ctx context.Context, now time.Time, stuckThreshold time.Duration) ([]*project.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+projectColumns+` FROM projects
		WHERE status = 'running' AND research_started_at IS NOT NULL
		  AND $1 - research_started_at > $2
	`, now, stuckThreshold)
	if err != nil {
		return nil, errs.Wrap(errs.Persistent, err, "project/postgres: query stuck running")
	}
	return toDomainSlice(rows), nil
}

func (s *Store) IncrementOneShotAnalytics(ctx context.Context, userID string, month time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO one_shot_analytics (user_id, month, count) VALUES ($1, $2, 1)
		ON CONFLICT (user_id, month) DO UPDATE SET count = one_shot_analytics.count + 1
	`, userID, month.Format("2006-01"))
	if err != nil {
		return errs.Wrap(errs.Persistent, err, "project/postgres: increment one-shot analytics")
	}
	return nil
}

func toDomainSlice(rows []projectRow) []*project.Project {
	out := make([]*project.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

var _ project.Store = (*Store)(nil)
