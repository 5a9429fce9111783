package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

// ErrNotGenerated is the retryable failure of CheckGeneration while the
// backend has not produced the requested content yet.
const ErrNotGenerated = "NotGenerated"

// SegmentWriter submits segment writes.
type SegmentWriter interface {
	CreateOrEditSegment(ctx context.Context, profile domain.SegmentProfile) (bool, error)
}

// GenerationChecker reports the current generation state of a trip.
type GenerationChecker interface {
	GenerationStatus(ctx context.Context, tripHash string) (bool, error)
}

// GenerationPublisher broadcasts generation observations.
type GenerationPublisher interface {
	PublishGenerationStatus(ctx context.Context, tripHash string, generated bool) error
}

// SegmentActivities holds the activity implementations of the segment
// generation workflow.
type SegmentActivities struct {
	Writer    SegmentWriter
	Checker   GenerationChecker
	Timelines *usecases.TimelineService
	Publisher GenerationPublisher // optional
}

// SubmitSegment sends one create or edit request. A rejection is not retried.
func (a *SegmentActivities) SubmitSegment(ctx context.Context, profile domain.SegmentProfile) error {
	ok, err := a.Writer.CreateOrEditSegment(ctx, profile)
	if err != nil {
		return fmt.Errorf("submit segment: %w", err)
	}
	if !ok {
		return temporal.NewNonRetryableApplicationError("backend rejected the segment", "Rejected", nil)
	}
	return nil
}

// CheckGeneration observes the generation state once. It fails with the
// retryable ErrNotGenerated type until the content is visible, so the retry
// policy of the activity is the polling budget.
func (a *SegmentActivities) CheckGeneration(ctx context.Context, tripHash string) error {
	attempt := activity.GetInfo(ctx).Attempt
	generated, err := a.Checker.GenerationStatus(ctx, tripHash)
	if err != nil {
		return fmt.Errorf("check generation (attempt %d): %w", attempt, err)
	}

	if a.Publisher != nil {
		if perr := a.Publisher.PublishGenerationStatus(ctx, tripHash, generated); perr != nil {
			activity.GetLogger(ctx).Warn("publish generation status failed", "trip", tripHash, "error", perr)
		}
	}

	if !generated {
		return temporal.NewApplicationError(fmt.Sprintf("trip %s not generated after attempt %d", tripHash, attempt), ErrNotGenerated)
	}
	return nil
}

// RefreshTimeline refetches the trip and returns its day count.
func (a *SegmentActivities) RefreshTimeline(ctx context.Context, tripHash string) (int, error) {
	view, err := a.Timelines.Refresh(ctx, tripHash)
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) {
			return 0, fmt.Errorf("refresh %s: %w", tripHash, te)
		}
		return 0, temporal.NewNonRetryableApplicationError(err.Error(), "RefreshFailed", err)
	}
	return view.NumberOfDays(), nil
}
