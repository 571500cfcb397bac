package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	fn   func(query string) (*SearchResponse, error)
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Search(_ context.Context, query string, _ SearchFilters) (*SearchResponse, error) {
	return f.fn(query)
}
func (f *fakeProvider) SearchMultiple(ctx context.Context, queries []string, filters SearchFilters) (map[string]*SearchResponse, error) {
	return BaseSearchMultiple(ctx, f, queries, filters)
}

func TestOrchestratorFailsOverToFallback(t *testing.T) {
	primary := &fakeProvider{name: "primary", fn: func(string) (*SearchResponse, error) {
		return nil, assertErr
	}}
	fallback := &fakeProvider{name: "fallback", fn: func(q string) (*SearchResponse, error) {
		return &SearchResponse{Query: q, Provider: "fallback"}, nil
	}}

	o := NewOrchestrator(OrchestratorConfig{FailureThreshold: 3, RecoveryTimeout: 50 * time.Millisecond}, primary, fallback)

	resp, err := o.Search(context.Background(), "q", SearchFilters{})
	require.NoError(t, err)
	require.Equal(t, "fallback", resp.Provider)
}

func TestOrchestratorOpensAfterConsecutiveFailuresThenRecovers(t *testing.T) {
	failing := &fakeProvider{name: "primary", fn: func(string) (*SearchResponse, error) {
		return nil, assertErr
	}}
	o := NewOrchestrator(OrchestratorConfig{FailureThreshold: 2, RecoveryTimeout: 30 * time.Millisecond}, failing)

	_, err := o.Search(context.Background(), "q", SearchFilters{})
	require.Error(t, err)
	_, err = o.Search(context.Background(), "q", SearchFilters{})
	require.Error(t, err)

	require.False(t, o.ProviderHealthy(0))

	time.Sleep(40 * time.Millisecond)
	require.True(t, o.ProviderHealthy(0))
}

var assertErr = &testErr{"provider failed"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
