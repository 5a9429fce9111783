package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

// WorkflowName is the registered name of SegmentGenerationWorkflow.
const WorkflowName = "SegmentGeneration"

// SegmentGenerationInput is the input of SegmentGenerationWorkflow.
type SegmentGenerationInput struct {
	Profile domain.SegmentProfile
	// AwaitGeneration is set for itinerary writes, whose content the backend
	// generates asynchronously.
	AwaitGeneration bool
	MaxChecks       int
	CheckInterval   time.Duration
}

// SegmentGenerationResult reports how the workflow finished.
type SegmentGenerationResult struct {
	Generated bool
	Days      int
}

// SegmentGenerationWorkflow submits a segment write, waits a bounded number
// of checks for the generated content, then refreshes the timeline. When the
// budget runs out the timeline is not refreshed and the workflow fails with a
// GenerationTimeout error.
func SegmentGenerationWorkflow(ctx workflow.Context, in SegmentGenerationInput) (SegmentGenerationResult, error) {
	logger := workflow.GetLogger(ctx)
	hash := in.Profile.TripHash
	logger.Info("segment generation started", "trip", hash, "await", in.AwaitGeneration)

	var a *SegmentActivities
	var res SegmentGenerationResult

	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		// a retried create would add a second segment
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(submitCtx, a.SubmitSegment, in.Profile).Get(ctx, nil); err != nil {
		return res, err
	}

	if in.AwaitGeneration {
		checks := in.MaxChecks
		if checks <= 0 {
			checks = usecases.DefaultPollAttempts
		}
		interval := in.CheckInterval
		if interval <= 0 {
			interval = 2 * time.Second
		}

		checkCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 15 * time.Second,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    interval,
				BackoffCoefficient: 1,
				MaximumAttempts:    int32(checks),
			},
		})
		err := workflow.ExecuteActivity(checkCtx, a.CheckGeneration, hash).Get(ctx, nil)
		if err != nil {
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.Type() == ErrNotGenerated {
				logger.Warn("generation not visible within budget", "trip", hash, "checks", checks)
				return res, temporal.NewNonRetryableApplicationError("generated content not visible yet", "GenerationTimeout", err)
			}
			return res, err
		}
		res.Generated = true
	}

	refreshCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	if err := workflow.ExecuteActivity(refreshCtx, a.RefreshTimeline, hash).Get(ctx, &res.Days); err != nil {
		return res, err
	}

	logger.Info("segment generation finished", "trip", hash, "days", res.Days)
	return res, nil
}
