// Multi-Provider Orchestrator (§4.E): health-tracked failover across
// search providers with consecutive-failure circuit-breaking and
// cool-down. Per-provider health is tracked with sony/gobreaker rather
// than a hand-rolled counter — ReadyToTrip wired to failureThreshold
// consecutive failures, Timeout wired to recoveryTimeout — reusing a real
// breaker library from the example pack (jordigilh-kubernaut's dependency
// graph) instead of reimplementing the same consecutive-failure/cool-down
// law by hand.
package search

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/briefloop/researchcore/errs"
)

type OrchestratorConfig struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
}

// Orchestrator holds an ordered {primary, fallback, free} tuple plus a
// circuit breaker per provider (§9: "the multi-variant holds an ordered
// tuple of others plus health state").
type Orchestrator struct {
	providers []Capability
	breakers  []*gobreaker.CircuitBreaker
}

func NewOrchestrator(cfg OrchestratorConfig, providers ...Capability) *Orchestrator {
	o := &Orchestrator{providers: providers}
	for _, p := range providers {
		name := p.Name()
		o.breakers = append(o.breakers, gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: cfg.RecoveryTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
		}))
	}
	return o
}

func (o *Orchestrator) Name() string { return "multi" }

// Search tries each healthy, not-yet-attempted provider in order; a
// breaker in its open state counts as "unhealthy" and is skipped without
// consuming an attempt against the vendor. If every provider is open or
// fails, the call returns a ProviderExhausted error (§4.E).
func (o *Orchestrator) Search(ctx context.Context, query string, filters SearchFilters) (*SearchResponse, error) {
	var lastErr error
	attempted := false
	for i, p := range o.providers {
		cb := o.breakers[i]
		if cb.State() == gobreaker.StateOpen {
			continue
		}
		attempted = true
		result, err := cb.Execute(func() (any, error) {
			return p.Search(ctx, query, filters)
		})
		if err == nil {
			return result.(*SearchResponse), nil
		}
		lastErr = err
	}
	if !attempted {
		return nil, errs.New(errs.ProviderExhausted, "search: all providers unhealthy")
	}
	return nil, errs.Wrap(errs.ProviderExhausted, lastErr, "search: all providers exhausted")
}

func (o *Orchestrator) SearchMultiple(ctx context.Context, queries []string, filters SearchFilters) (map[string]*SearchResponse, error) {
	return BaseSearchMultiple(ctx, o, queries, filters)
}

// ProviderHealthy reports whether the provider at index i is currently
// eligible (closed or half-open), for the admin health endpoint (§6).
func (o *Orchestrator) ProviderHealthy(i int) bool {
	if i < 0 || i >= len(o.breakers) {
		return false
	}
	return o.breakers[i].State() != gobreaker.StateOpen
}

var _ Capability = (*Orchestrator)(nil)
