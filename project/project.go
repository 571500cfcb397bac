// Package project is the data model and store contract for the single
// source of truth §3 describes: Project and its child DeliveryLog, plus the
// predicate queries the Scheduler (§4.G) and Recovery Reconciler (§4.J) run
// against it. Every enumeration is a closed Go string type with a
// validating constructor so an unknown value is rejected at the boundary
// instead of silently propagating through the pipeline.
package project

import (
	"fmt"
	"time"

	"github.com/briefloop/researchcore/errs"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyOnce    Frequency = "once"
)

func NewFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOnce:
		return Frequency(s), nil
	default:
		return "", errs.Newf(errs.Validation, "project: unknown frequency %q", s)
	}
}

type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusRunning Status = "running"
	StatusError   Status = "error"
	StatusDeleted Status = "deleted"
)

func NewStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusPaused, StatusRunning, StatusError, StatusDeleted:
		return Status(s), nil
	default:
		return "", errs.Newf(errs.Validation, "project: unknown status %q", s)
	}
}

type DeliveryLogStatus string

const (
	DeliveryLogPending DeliveryLogStatus = "pending"
	DeliveryLogSuccess DeliveryLogStatus = "success"
	DeliveryLogFailed  DeliveryLogStatus = "failed"
	DeliveryLogPartial DeliveryLogStatus = "partial"
)

func NewDeliveryLogStatus(s string) (DeliveryLogStatus, error) {
	switch DeliveryLogStatus(s) {
	case DeliveryLogPending, DeliveryLogSuccess, DeliveryLogFailed, DeliveryLogPartial:
		return DeliveryLogStatus(s), nil
	default:
		return "", errs.Newf(errs.Validation, "project: unknown delivery log status %q", s)
	}
}

type Freshness string

const (
	FreshnessPastDay   Freshness = "pd"
	FreshnessPastWeek  Freshness = "pw"
	FreshnessPastMonth Freshness = "pm"
	FreshnessPastYear  Freshness = "py"
)

func NewFreshness(s string) (Freshness, error) {
	switch Freshness(s) {
	case FreshnessPastDay, FreshnessPastWeek, FreshnessPastMonth, FreshnessPastYear:
		return Freshness(s), nil
	default:
		return "", errs.Newf(errs.Validation, "project: unknown freshness %q", s)
	}
}

// SearchParameters is the closed per-project search configuration (§3): no
// loose map of options, every recognized field has a name and a type.
type SearchParameters struct {
	PriorityDomains     []string
	ExcludedDomains     []string
	RequiredKeywords    []string
	ExcludedKeywords    []string
	Language            string
	Region              string
	OutputLanguage      string
	DateRangePreference Freshness
}

// Project is the authoritative record the Scheduler, Research Worker,
// Delivery Worker, and Recovery Reconciler all read and write. Fields
// map directly onto §3; epoch-ms timestamps use time.Time in-process and
// are converted at the store boundary.
type Project struct {
	ID          string
	UserID      string
	Title       string
	Description string

	Frequency    Frequency
	DeliveryTime string // "HH:MM" local
	Timezone     string // IANA zone
	DayOfWeek    int    // 1-7, weekly only
	DayOfMonth   int    // 1-31, monthly only

	Status Status

	SearchParameters SearchParameters

	NextRunAt             *time.Time
	LastRunAt             *time.Time
	ResearchStartedAt     *time.Time
	PreparedDeliveryLogID *string
	PreparedAt            *time.Time
	DeliveredAt           *time.Time
	LastError             string
	ThisRunIsOneShot      bool
}

// Validate enforces the §3 invariants that the constructor/store boundary
// must reject: title/description length, weekly/monthly day ranges, and
// the exactly-one-of invariant on PreparedDeliveryLogID is left to callers
// since it depends on the transition being performed, not the record shape.
func (p *Project) Validate() error {
	if p.Title == "" || len(p.Title) > 255 {
		return errs.New(errs.Validation, "project: title must be non-empty and <=255 chars")
	}
	if len(p.Description) > 2000 {
		return errs.New(errs.Validation, "project: description exceeds 2000 chars")
	}
	if p.Frequency == FrequencyWeekly && (p.DayOfWeek < 1 || p.DayOfWeek > 7) {
		return errs.New(errs.Validation, "project: dayOfWeek must be 1-7 for weekly frequency")
	}
	if p.Frequency == FrequencyMonthly && (p.DayOfMonth < 1 || p.DayOfMonth > 31) {
		return errs.New(errs.Validation, "project: dayOfMonth must be 1-31 for monthly frequency")
	}
	if p.Status == StatusRunning && p.ResearchStartedAt == nil {
		return errs.New(errs.Validation, "project: status=running requires researchStartedAt")
	}
	return nil
}

// StatsSummary is the delivery log's durations/counts/cost-estimate bundle.
type StatsSummary struct {
	QueriesGenerated  int
	SearchResults     int
	ExtractedItems    int
	RelevantItems     int
	PipelineDurationMS int64
	EstimatedCostUSD  float64
}

// DeliveryLog is the child record created at the end of the pipeline (§4.F
// step 11) and transitioned to a terminal state by the delivery worker
// (§4.I); it is never mutated again once terminal.
type DeliveryLog struct {
	ID            string
	ProjectID     string
	Status        DeliveryLogStatus
	ReportTitle   string
	ReportMarkdown string
	ReportSummary string
	DeliveredAt   *time.Time
	RetryCount    int
	Stats         StatsSummary
	Error         string
}

func (d *DeliveryLog) Terminal() bool {
	return d.Status == DeliveryLogSuccess || d.Status == DeliveryLogFailed
}

func (d *DeliveryLog) String() string {
	return fmt.Sprintf("DeliveryLog{id=%s project=%s status=%s}", d.ID, d.ProjectID, d.Status)
}
