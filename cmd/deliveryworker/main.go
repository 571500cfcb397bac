// Command deliveryworker runs the Delivery Worker (§4.I) as a standalone
// process: consume delivery jobs, render and send the prepared report,
// advance project state. Concurrency is 2 per process with a 2-jobs/1200ms
// vendor rate limiter applied to the broker's consume step (§5).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/briefloop/researchcore/cmd/internal/bootstrap"
	"github.com/briefloop/researchcore/core/app"
	"github.com/briefloop/researchcore/core/broker"
	"github.com/briefloop/researchcore/core/job"
	"github.com/briefloop/researchcore/core/message"
	"github.com/briefloop/researchcore/deliveryworker"
)

// limitedBroker is *broker.Redis with its Consume step rate-limited; the
// explicit Consume method below shadows the one *broker.Redis otherwise
// promotes, so Produce/Ack/Nack/Close still come straight from the
// embedded broker.
type limitedBroker struct {
	*broker.Redis
	limited *deliveryworker.RateLimitedConsumer
}

func (l *limitedBroker) Consume(ctx context.Context) (*message.Msg, message.ID, error) {
	return l.limited.Consume(ctx)
}

func main() {
	configFile := flag.String("config", "", "path to a config file (optional, env vars alone are enough)")
	flag.Parse()

	ctx := context.Background()
	b, err := bootstrap.New(ctx, *configFile)
	if err != nil {
		slog.Error("deliveryworker: bootstrap failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer b.Close()

	w := deliveryworker.New(b.Store, b.EmailSender, deliveryworker.DirectRecipients{})
	rateLimited := deliveryworker.NewRateLimitedConsumer(b.DeliveryBroker, 2, 1200*time.Millisecond)

	streamJob := job.NewStreamJob(&job.StreamJobOptions{
		Config: &job.StreamJobConfig{MaxInFlight: 2},
		Worker: w,
		Broker: &limitedBroker{Redis: b.DeliveryBroker, limited: rateLimited},
	})

	application := app.New(&app.Options{
		Name: "deliveryworker",
		Jobs: []job.Job{streamJob},
	})
	if err := application.Run(ctx); err != nil {
		slog.Error("deliveryworker: exited with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
