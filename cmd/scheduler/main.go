// Command scheduler runs the tick-driven Scheduler (§4.G) as a standalone
// process: poll the project store once a minute, enqueue due
// research and delivery jobs onto the shared broker.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/briefloop/researchcore/cmd/internal/bootstrap"
	"github.com/briefloop/researchcore/core/app"
	"github.com/briefloop/researchcore/core/job"
	"github.com/briefloop/researchcore/core/trigger"
	"github.com/briefloop/researchcore/core/worker"
	"github.com/briefloop/researchcore/schedule"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (optional, env vars alone are enough)")
	flag.Parse()

	ctx := context.Background()
	b, err := bootstrap.New(ctx, *configFile)
	if err != nil {
		slog.Error("scheduler: bootstrap failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer b.Close()

	if !b.Config.Scheduler.Enabled {
		slog.Info("scheduler: disabled by config, exiting")
		return
	}

	sched := schedule.New(b.Store, b.ResearchBroker, b.DeliveryBroker, schedule.Config{
		CheckWindowMinutes: b.Config.Scheduler.CheckWindowMinutes,
	})

	if b.Config.Scheduler.RunOnStartup {
		sched.Context(ctx)
		sched.Work()
	}

	cronTrigger := trigger.NewCronTrigger(&trigger.CronTriggerOptions{
		Spec: "0 * * * * *",
	})
	schedulerJob := job.NewBatchJob(&job.BatchJobOptions{
		Trigger: cronTrigger,
		Workers: []worker.BatchWorker{sched},
	})

	application := app.New(&app.Options{
		Name: "scheduler",
		Jobs: []job.Job{schedulerJob},
	})
	if err := application.Run(ctx); err != nil {
		slog.Error("scheduler: exited with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
