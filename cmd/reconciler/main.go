// Command reconciler runs the Recovery Reconciler (§4.J) as a standalone
// process, plus the admin surface (§4.L/§6) so an operator can trigger a
// pass on demand and check queue health.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/briefloop/researchcore/adminapi"
	"github.com/briefloop/researchcore/cmd/internal/bootstrap"
	"github.com/briefloop/researchcore/core/app"
	"github.com/briefloop/researchcore/core/job"
	"github.com/briefloop/researchcore/core/trigger"
	"github.com/briefloop/researchcore/core/worker"
	"github.com/briefloop/researchcore/reconcile"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (optional, env vars alone are enough)")
	flag.Parse()

	ctx := context.Background()
	b, err := bootstrap.New(ctx, *configFile)
	if err != nil {
		slog.Error("reconciler: bootstrap failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer b.Close()

	r := reconcile.New(b.Store, b.ResearchBroker, b.DeliveryBroker, reconcile.Config{
		StuckThresholdMinutes: b.Config.Scheduler.StuckThresholdMinutes,
	})

	r.Context(ctx)
	r.Work() // one immediate pass at startup, per §4.J

	cronTrigger := trigger.NewCronTrigger(&trigger.CronTriggerOptions{
		Spec: fmt.Sprintf("@every %dm", b.Config.Scheduler.ReconcileIntervalMinutes),
	})
	reconcileJob := job.NewBatchJob(&job.BatchJobOptions{
		Trigger: cronTrigger,
		Workers: []worker.BatchWorker{r},
	})

	jobs := []job.Job{reconcileJob}

	var adminServer *http.Server
	if b.Config.Admin.Enabled {
		api := adminapi.New(adminapi.Deps{
			Cache:          b.Cache,
			ResearchBroker: b.ResearchBroker,
			DeliveryBroker: b.DeliveryBroker,
			Reconciler:     r,
		}, []string{"*"})
		adminServer = &http.Server{Addr: b.Config.Admin.Addr, Handler: api}
		jobs = append(jobs, &httpJob{server: adminServer})
	}

	application := app.New(&app.Options{
		Name: "reconciler",
		Jobs: jobs,
	})
	if err := application.Run(ctx); err != nil {
		slog.Error("reconciler: exited with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

// httpJob adapts an *http.Server to core/job.Job so the admin surface
// starts/stops alongside the reconciler's tick-driven job.
type httpJob struct {
	server *http.Server
}

func (h *httpJob) Start(ctx context.Context) error {
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("adminapi: server error", slog.String("err", err.Error()))
		}
	}()
	return nil
}

func (h *httpJob) Stop() error {
	return h.server.Close()
}
