// Package adminapi is the Admin/Observability Surface (§4.L, §6): a small
// chi router serving the two admin endpoints, with go-chi/cors applied the
// way jordigilh-kubernaut's gateway wires its CORS middleware in front of a
// chi.Router.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/briefloop/researchcore/cache"
	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/reconcile"
)

// QueueDepths is what a single queue reports for §6's
// queues:{research:{waiting,active,delayed,failed}} shape.
type QueueDepths struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
}

// Deps is everything the admin surface needs to answer both endpoints. The
// two broker handles are *broker.Redis specifically (not the broker.Broker
// interface) because only the Redis implementation exposes Depths; an
// in-memory broker has no equivalent concept of a remote queue to report on.
type Deps struct {
	Cache          cache.Store
	ResearchBroker *broker.Redis
	DeliveryBroker *broker.Redis
	Reconciler     *reconcile.Reconciler
}

type Server struct {
	router chi.Router
	deps   Deps
}

func New(deps Deps, allowedOrigins []string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	s := &Server{router: r, deps: deps}
	r.Post("/admin/queue/recover", s.handleRecover)
	r.Get("/admin/queue/health", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

type recoverResponse struct {
	Recovered int `json:"recovered"`
	StuckReset int `json:"stuckReset"`
	Errors    int `json:"errors"`
}

// handleRecover triggers one reconciler pass on demand (§6 "POST
// /admin/queue/recover") and reports its counts, the same Result the
// reconciler's own tick-driven Work() accumulates.
func (s *Server) handleRecover(w http.ResponseWriter, req *http.Request) {
	result := s.deps.Reconciler.Run(req.Context())
	writeJSON(w, http.StatusOK, recoverResponse{
		Recovered:  result.Recovered,
		StuckReset: result.StuckReset,
		Errors:     result.Errors,
	})
}

type healthResponse struct {
	Healthy bool                   `json:"healthy"`
	Redis   bool                   `json:"redis"`
	Workers map[string]bool        `json:"workers"`
	Queues  map[string]QueueDepths `json:"queues"`
}

// handleHealth answers §6 "GET /admin/queue/health". Redis health is a
// direct cache.Store.Ping; queue depths come from each broker's Depths. A
// worker is reported healthy iff its queue's Depths call succeeds — this
// process doesn't track individual worker heartbeats, only whether its
// queue is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	redisHealthy := s.deps.Cache.Ping(ctx) == nil

	researchDepths, researchErr := depthsOf(ctx, s.deps.ResearchBroker)
	deliveryDepths, deliveryErr := depthsOf(ctx, s.deps.DeliveryBroker)

	resp := healthResponse{
		Redis: redisHealthy,
		Workers: map[string]bool{
			"research": researchErr == nil,
			"delivery": deliveryErr == nil,
		},
		Queues: map[string]QueueDepths{
			"research": researchDepths,
			"delivery": deliveryDepths,
		},
	}
	resp.Healthy = redisHealthy && researchErr == nil && deliveryErr == nil

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func depthsOf(ctx context.Context, b *broker.Redis) (QueueDepths, error) {
	if b == nil {
		return QueueDepths{}, nil
	}
	waiting, active, delayed, failed, err := b.Depths(ctx)
	if err != nil {
		return QueueDepths{}, err
	}
	return QueueDepths{Waiting: waiting, Active: active, Delayed: delayed, Failed: failed}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
