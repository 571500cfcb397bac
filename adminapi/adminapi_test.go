package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/briefloop/researchcore/cache"
	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/project"
	"github.com/briefloop/researchcore/project/memstore"
	"github.com/briefloop/researchcore/reconcile"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := memstore.New()
	researchBroker := broker.NewRedis(client, &broker.RedisConfig{Topic: "research"})
	deliveryBroker := broker.NewRedis(client, &broker.RedisConfig{Topic: "delivery"})
	r := reconcile.New(store, researchBroker, deliveryBroker, reconcile.Config{})

	return New(Deps{
		Cache:          cache.NewFromClient(client),
		ResearchBroker: researchBroker,
		DeliveryBroker: deliveryBroker,
		Reconciler:     r,
	}, []string{"*"})
}

func TestHealthReportsHealthyWhenRedisUp(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/queue/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Healthy)
	require.True(t, body.Redis)
	require.True(t, body.Workers["research"])
	require.True(t, body.Workers["delivery"])
}

func TestHealthReportsUnhealthyWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	researchBroker := broker.NewRedis(client, &broker.RedisConfig{Topic: "research"})
	deliveryBroker := broker.NewRedis(client, &broker.RedisConfig{Topic: "delivery"})
	store := memstore.New()
	r := reconcile.New(store, researchBroker, deliveryBroker, reconcile.Config{})

	s := New(Deps{
		Cache:          cache.NewFromClient(client),
		ResearchBroker: researchBroker,
		DeliveryBroker: deliveryBroker,
		Reconciler:     r,
	}, []string{"*"})

	mr.Close()

	req := httptest.NewRequest(http.MethodGet, "/admin/queue/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Healthy)
}

func TestRecoverTriggersReconcilerAndReportsCounts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	researchBroker := broker.NewRedis(client, &broker.RedisConfig{Topic: "research"})
	deliveryBroker := broker.NewRedis(client, &broker.RedisConfig{Topic: "delivery"})
	store := memstore.New()
	require.NoError(t, store.Create(context.Background(), &project.Project{
		ID: "proj-1", UserID: "user-1", Title: "t", Description: "d",
		Frequency: project.FrequencyDaily, DeliveryTime: "09:00", Timezone: "UTC",
		Status: project.StatusError,
	}))
	r := reconcile.New(store, researchBroker, deliveryBroker, reconcile.Config{})

	s := New(Deps{
		Cache:          cache.NewFromClient(client),
		ResearchBroker: researchBroker,
		DeliveryBroker: deliveryBroker,
		Reconciler:     r,
	}, []string{"*"})

	req := httptest.NewRequest(http.MethodPost, "/admin/queue/recover", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body recoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Recovered)
}
