// Package memstore is an in-memory project.Store used by every unit test
// and the end-to-end scenario tests in spec §8 — the "explicit lifecycle"
// design note requires the store to be resettable between tests without
// standing up real infrastructure.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/briefloop/researchcore/project"
)

type Store struct {
	mu           sync.Mutex
	projects     map[string]*project.Project // keyed by ID
	deliveryLogs map[string]*project.DeliveryLog
	oneShotCount map[string]int // userID|YYYY-MM -> count
}

func New() *Store {
	return &Store{
		projects:     make(map[string]*project.Project),
		deliveryLogs: make(map[string]*project.DeliveryLog),
		oneShotCount: make(map[string]int),
	}
}

// Reset clears all stored state, for test isolation between cases.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make(map[string]*project.Project)
	s.deliveryLogs = make(map[string]*project.DeliveryLog)
	s.oneShotCount = make(map[string]int)
}

func clone(p *project.Project) *project.Project {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneLog(d *project.DeliveryLog) *project.DeliveryLog {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

func (s *Store) Get(_ context.Context, userID, projectID string) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return nil, project.ErrConflict
	}
	return clone(p), nil
}

func (s *Store) Create(_ context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = clone(p)
	return nil
}

func (s *Store) Update(_ context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return project.ErrConflict
	}
	s.projects[p.ID] = clone(p)
	return nil
}

func (s *Store) GetDeliveryLog(_ context.Context, id string) (*project.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveryLogs[id]
	if !ok {
		return nil, project.ErrConflict
	}
	return cloneLog(d), nil
}

func (s *Store) CreateDeliveryLog(_ context.Context, d *project.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveryLogs[d.ID] = cloneLog(d)
	return nil
}

func (s *Store) UpdateDeliveryLog(_ context.Context, d *project.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveryLogs[d.ID]; !ok {
		return project.ErrConflict
	}
	s.deliveryLogs[d.ID] = cloneLog(d)
	return nil
}

func (s *Store) QueryPreRun(_ context.Context, now time.Time, window time.Duration) ([]*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := now.Add(window)
	var out []*project.Project
	for _, p := range s.projects {
		if !(p.Status == project.StatusActive || p.Status == project.StatusError) {
			continue
		}
		if p.PreparedDeliveryLogID != nil {
			continue
		}
		if p.NextRunAt == nil {
			continue
		}
		if now.Before(*p.NextRunAt) && !p.NextRunAt.After(deadline) {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *Store) QueryRetry(_ context.Context, now time.Time) ([]*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*project.Project
	for _, p := range s.projects {
		if !(p.Status == project.StatusActive || p.Status == project.StatusError) {
			continue
		}
		if p.PreparedDeliveryLogID != nil {
			continue
		}
		if p.NextRunAt == nil {
			continue
		}
		if !p.NextRunAt.After(now) {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *Store) QueryNeedsDelivery(_ context.Context, now time.Time) ([]*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*project.Project
	for _, p := range s.projects {
		if p.PreparedDeliveryLogID == nil {
			continue
		}
		if p.NextRunAt != nil && p.NextRunAt.After(now) {
			continue
		}
		out = append(out, clone(p))
	}
	return out, nil
}

func (s *Store) QueryNeedsResearch(_ context.Context) ([]*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*project.Project
	for _, p := range s.projects {
		if (p.Status == project.StatusActive || p.Status == project.StatusError) && p.PreparedDeliveryLogID == nil {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *Store) QueryStuckRunning(_ context.Context, now time.Time, stuckThreshold time.Duration) ([]*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*project.Project
	for _, p := range s.projects {
		if p.Status != project.StatusRunning || p.ResearchStartedAt == nil {
			continue
		}
		if now.Sub(*p.ResearchStartedAt) > stuckThreshold {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *Store) IncrementOneShotAnalytics(_ context.Context, userID string, month time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + month.Format("2006-01")
	s.oneShotCount[key]++
	return nil
}

// OneShotCount is a test helper exposing the counter IncrementOneShotAnalytics
// maintains, since the real store has no read path for it in §6.
func (s *Store) OneShotCount(userID string, month time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oneShotCount[userID+"|"+month.Format("2006-01")]
}

var _ project.Store = (*Store)(nil)
