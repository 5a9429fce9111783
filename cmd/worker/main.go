package main

import (
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/tripline/internal/adapters/backend"
	natsadapter "github.com/samirrijal/tripline/internal/adapters/nats"
	"github.com/samirrijal/tripline/internal/core/ports"
	"github.com/samirrijal/tripline/internal/core/usecases"
	"github.com/samirrijal/tripline/internal/pkg/config"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/workflows"
)

func main() {
	cfg, err := config.Load("tripline-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	repo := backend.NewTimelineRepository(backend.TimelineConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: time.Duration(cfg.Backend.Timeout) * time.Second,
	})

	activities := &workflows.SegmentActivities{Writer: repo, Checker: repo}

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, generation status will not be broadcast", "error", err)
	} else {
		defer pub.Close()
		activities.Publisher = pub
		events = pub
	}
	activities.Timelines = usecases.NewTimelineService(repo, nil, nil, events, usecases.TimelineServiceConfig{})

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.Component("temporal"),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(workflows.SegmentGenerationWorkflow, workflow.RegisterOptions{Name: workflows.WorkflowName})
	w.RegisterActivity(activities)

	slog.Info("segment generation worker started", "queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
