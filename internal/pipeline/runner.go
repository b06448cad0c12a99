package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/internal/storage/models"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
	"github.com/iq-workshop/builder/pkg/logger"
)

// Runner executes a plan sequentially, one status line per step. The first
// failure aborts the run unless ContinueOnError is set.
type Runner struct {
	store           *sqlite.Client
	out             io.Writer
	dryRun          bool
	continueOnError bool
}

type RunnerOptions struct {
	Store           *sqlite.Client
	DryRun          bool
	ContinueOnError bool
}

// RunInfo carries the dataset parameters recorded with the run.
type RunInfo struct {
	Industry string
	UseCase  string
	Size     string
}

func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		store:           opts.Store,
		out:             os.Stdout,
		dryRun:          opts.DryRun,
		continueOnError: opts.ContinueOnError,
	}
}

// Run executes the steps in order. The returned error is the first step
// failure, so callers can exit non-zero.
func (r *Runner) Run(ctx context.Context, steps []Step, info RunInfo) error {
	if r.dryRun {
		fmt.Fprintln(r.out, "Plan (dry run):")
		for _, step := range steps {
			fmt.Fprintf(r.out, "> [%s] %s\n", step.ID, step.Title)
		}
		return nil
	}

	runID := uuid.NewString()
	r.recordRunStart(runID, info)

	var firstErr error
	var failedStep string

	for _, step := range steps {
		if firstErr != nil && !r.continueOnError {
			break
		}

		fmt.Fprintf(r.out, "> [%s] %s... ", step.ID, step.Title)

		start := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(start)

		metrics.StepDuration.WithLabelValues(step.ID).Observe(elapsed.Seconds())

		if err != nil {
			fmt.Fprintln(r.out, "FAIL")
			fmt.Fprintf(r.out, "  %v\n", err)
			metrics.StepTotal.WithLabelValues(step.ID, models.StepStatusFailed).Inc()
			r.recordStep(runID, step.ID, models.StepStatusFailed, err.Error(), start)
			logger.Error("Step failed",
				zap.String("step", step.ID),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("step %s (%s) failed: %w", step.ID, step.Title, err)
				failedStep = step.ID
			}
			continue
		}

		fmt.Fprintln(r.out, "OK")
		metrics.StepTotal.WithLabelValues(step.ID, models.StepStatusOK).Inc()
		r.recordStep(runID, step.ID, models.StepStatusOK, "", start)
		logger.Info("Step completed",
			zap.String("step", step.ID),
			zap.Duration("elapsed", elapsed),
		)
	}

	if firstErr != nil {
		r.recordRunEnd(runID, models.RunStatusFailed)
		fmt.Fprintf(r.out, "\nRun failed. Fix the problem and resume with: builder --from %s\n", failedStep)
		return firstErr
	}

	r.recordRunEnd(runID, models.RunStatusOK)
	return nil
}

func (r *Runner) recordRunStart(runID string, info RunInfo) {
	if r.store == nil {
		return
	}
	err := r.store.CreateRun(&models.Run{
		ID:        runID,
		Industry:  info.Industry,
		UseCase:   info.UseCase,
		Size:      info.Size,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record run", zap.Error(err))
	}
}

func (r *Runner) recordStep(runID, stepID, status, errMsg string, startedAt time.Time) {
	if r.store == nil {
		return
	}
	now := time.Now()
	err := r.store.RecordStep(&models.RunStep{
		RunID:     runID,
		StepID:    stepID,
		Status:    status,
		Error:     errMsg,
		StartedAt: startedAt,
		EndedAt:   &now,
	})
	if err != nil {
		logger.Warn("Failed to record step", zap.Error(err))
	}
}

func (r *Runner) recordRunEnd(runID, status string) {
	if r.store == nil {
		return
	}
	if err := r.store.FinishRun(runID, status); err != nil {
		logger.Warn("Failed to finish run record", zap.Error(err))
	}
}
