// Command researchworker runs the Research Worker (§4.H) as a standalone
// process: consume research jobs, run the pipeline, prepare a delivery log.
// Concurrency is fixed at 1 per process (§5); horizontal scale is more
// processes, not a higher in-process limit.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/briefloop/researchcore/cmd/internal/bootstrap"
	"github.com/briefloop/researchcore/core/app"
	"github.com/briefloop/researchcore/core/job"
	"github.com/briefloop/researchcore/researchworker"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (optional, env vars alone are enough)")
	flag.Parse()

	ctx := context.Background()
	b, err := bootstrap.New(ctx, *configFile)
	if err != nil {
		slog.Error("researchworker: bootstrap failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer b.Close()

	w := researchworker.New(b.Store, b.Pipeline)

	streamJob := job.NewStreamJob(&job.StreamJobOptions{
		Config: &job.StreamJobConfig{MaxInFlight: 1},
		Worker: w,
		Broker: b.ResearchBroker,
	})

	application := app.New(&app.Options{
		Name: "researchworker",
		Jobs: []job.Job{streamJob},
	})
	if err := application.Run(ctx); err != nil {
		slog.Error("researchworker: exited with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
