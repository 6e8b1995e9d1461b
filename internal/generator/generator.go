// Package generator turns due maintenance plans into tasks.
package generator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"maintenance-backend/internal/metrics"
	"maintenance-backend/internal/store"
)

// DefaultWindow is the lookahead used when a run does not specify one.
const DefaultWindow = 24 * time.Hour

// PlanStore is the part of store.Store the generator needs.
type PlanStore interface {
	ActivePlanIDs(ctx context.Context) ([]int64, error)
	MaterializePlanTask(ctx context.Context, planID int64, at time.Time, window time.Duration) (store.Materialized, error)
}

// PlanError records why one plan could not be processed.
type PlanError struct {
	PlanID int64  `json:"plan_id"`
	Error  string `json:"error"`
}

// Summary reports a generation run.
type Summary struct {
	RanAt   time.Time     `json:"ran_at"`
	Window  time.Duration `json:"window"`
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	NotDue  int           `json:"not_due"`
	// CreatedTaskIDs lists the new tasks; Flagged the subset created past their shift deadline.
	CreatedTaskIDs []int64     `json:"created_task_ids"`
	Flagged        []int64     `json:"flagged"`
	Errors         []PlanError `json:"errors"`
}

// Generator materializes tasks for due plans.
type Generator struct {
	store   PlanStore
	metrics *metrics.Collector
	log     *zap.Logger
}

// New creates a generator. metrics may be nil.
func New(s PlanStore, m *metrics.Collector, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{store: s, metrics: m, log: log}
}

// GenerateTasks creates a task for every active plan that is due within window from at and
// has no open task. A failing plan is recorded in the summary and does not stop the run.
// The returned error is only set when the plan list itself could not be loaded.
func (g *Generator) GenerateTasks(ctx context.Context, at time.Time, window time.Duration) (Summary, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	started := time.Now()
	sum := Summary{
		RanAt:          at.UTC(),
		Window:         window,
		CreatedTaskIDs: []int64{},
		Flagged:        []int64{},
		Errors:         []PlanError{},
	}

	ids, err := g.store.ActivePlanIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list plans: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := g.store.MaterializePlanTask(ctx, id, at, window)
		if err != nil {
			g.log.Warn("task generation failed for plan", zap.Int64("plan_id", id), zap.Error(err))
			sum.Errors = append(sum.Errors, PlanError{PlanID: id, Error: err.Error()})
			continue
		}
		switch res.Outcome {
		case store.OutcomeCreated:
			sum.Created++
			sum.CreatedTaskIDs = append(sum.CreatedTaskIDs, res.Task.ID)
			if res.Task.PastDeadline {
				sum.Flagged = append(sum.Flagged, res.Task.ID)
				g.log.Warn("task created past its shift deadline",
					zap.Int64("plan_id", id),
					zap.Int64("task_id", res.Task.ID),
					zap.Timep("deadline", res.Task.ShiftDeadline))
			}
		case store.OutcomeSkipped:
			sum.Skipped++
		default:
			sum.NotDue++
		}
	}

	g.metrics.RecordGeneration(sum.Created, sum.Skipped, len(sum.Errors), len(sum.Flagged), time.Since(started), time.Now())
	g.log.Info("task generation finished",
		zap.Time("at", sum.RanAt),
		zap.Duration("window", window),
		zap.Int("plans", len(ids)),
		zap.Int("created", sum.Created),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", len(sum.Errors)))
	return sum, nil
}
