package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/assign"
	"maintenance-backend/internal/escalation"
	"maintenance-backend/internal/hours"
	"maintenance-backend/internal/metrics"
	"maintenance-backend/internal/model"
)

// Store defines the interface for all database operations of the maintenance engine.
// Every write runs in its own transaction; task generation runs one transaction per plan.
type Store interface {
	DB() *gorm.DB

	// Plans
	CreatePlan(ctx context.Context, in PlanInput) (*model.MaintenancePlan, error)
	SetSkillLevel(ctx context.Context, userID int64, level int) (*model.User, error)

	// Task generation
	ActivePlanIDs(ctx context.Context) ([]int64, error)
	MaterializePlanTask(ctx context.Context, planID int64, at time.Time, window time.Duration) (Materialized, error)

	// Operating hours
	RecordReading(ctx context.Context, in ReadingInput) (*ReadingResult, error)

	// Tasks
	CreateStandaloneTask(ctx context.Context, in StandaloneTaskInput) (*model.MaintenanceTask, error)
	StartTask(ctx context.Context, taskID int64, actor *int64, at time.Time) (*model.MaintenanceTask, error)
	CompleteTask(ctx context.Context, taskID int64, in CompleteInput) (*model.MaintenanceTask, error)
	CancelTask(ctx context.Context, taskID int64, actor *int64, note string) (*model.MaintenanceTask, error)
	DeleteTask(ctx context.Context, taskID int64) error

	// Checklist
	SubmitChecklist(ctx context.Context, taskID int64, in ChecklistSubmission) (*SubmissionResult, error)

	// Escalations
	OpenEscalation(ctx context.Context, in OpenEscalationInput) (*model.Escalation, error)
	TransitionEscalation(ctx context.Context, id int64, in TransitionInput) (*model.Escalation, error)
	RaiseEscalation(ctx context.Context, id int64, actor *int64) (*model.Escalation, error)
	Escalation(ctx context.Context, id int64) (*model.Escalation, error)

	// Assignments
	AssignTask(ctx context.Context, taskID, userID int64, at time.Time) (*model.MaintenanceTask, error)
	CreateAssignment(ctx context.Context, in AssignmentInput) (*model.TaskAssignment, error)
	AutoAssign(ctx context.Context, day time.Time) (*AssignSummary, error)

	// Read views
	PlanOverview(ctx context.Context, at time.Time, filter PlanFilter) ([]PlanStatus, error)
	MachineStatus(ctx context.Context, at time.Time) ([]MachineRollup, error)
	TodayTasks(ctx context.Context, userID int64, day time.Time) ([]model.MaintenanceTask, error)
	UnassignedEscalations(ctx context.Context) ([]model.Escalation, error)
	TaskDetail(ctx context.Context, taskID int64) (*TaskDetail, error)

	// Push subscriptions
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// EscalationNotifier is told about escalations that have a recipient, after the
// transaction that routed them committed.
type EscalationNotifier interface {
	Dispatch(escalationID int64)
}

// Options configure a gorm store.
type Options struct {
	// Location defines calendar days for deadlines and assignments. Defaults to UTC.
	Location    *time.Location
	HoursPolicy hours.Policy
	Assign      assign.Options
	Metrics     *metrics.Collector
	Notifier    EscalationNotifier
	Logger      *zap.Logger
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db       *gorm.DB
	loc      *time.Location
	policy   hours.Policy
	assign   assign.Options
	metrics  *metrics.Collector
	notifier EscalationNotifier
	log      *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts Options) Store {
	s := &gormStore{
		db:       db,
		loc:      opts.Location,
		policy:   opts.HoursPolicy,
		assign:   opts.Assign,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		log:      opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.policy == "" {
		s.policy = hours.PolicyReject
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// DB exposes the underlying connection for migrations and tests.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

var (
	// ErrTaskState is returned when a task operation is illegal in the task's current status.
	ErrTaskState = fmt.Errorf("%w: illegal task state", apperr.ErrConflict)
	// ErrTaskHalted is returned while a stop-triggered escalation of the task is unsettled.
	ErrTaskHalted = fmt.Errorf("%w: task is halted by an unsettled escalation", apperr.ErrConflict)
	// ErrChecklistIncomplete is returned when completing a task with unevaluated checklist items.
	ErrChecklistIncomplete = fmt.Errorf("%w: checklist is not complete", apperr.ErrConflict)
	// ErrDuplicateAssignment is returned for a second assignment of the same (user, plan, day).
	ErrDuplicateAssignment = fmt.Errorf("%w: assignment already exists for user, plan and day", apperr.ErrConflict)
	// ErrResolutionRequired is returned when resolving an escalation without resolution text.
	ErrResolutionRequired = fmt.Errorf("%w: resolution text is required", apperr.ErrValidation)
)

// forUpdate locks the selected rows until the transaction ends. SQLite ignores it and
// serializes writers instead.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// lookup maps gorm.ErrRecordNotFound to a not-found error and wraps everything else.
func lookup(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return fmt.Errorf("failed to load %s: %w", fmt.Sprintf(format, args...), err)
}

// isUniqueViolation recognizes unique-constraint errors from postgres and sqlite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// dayOf returns the calendar day of t in loc as midnight UTC, the form assignment dates are stored in.
func dayOf(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// notify hands escalations with a recipient to the notifier and records metrics.
// It must only be called after the transaction that created them committed.
func (s *gormStore) notify(escs []model.Escalation, opened bool) {
	for _, e := range escs {
		if opened {
			s.metrics.RecordEscalationOpened(e.EscalationLevel, e.EscalatedToUserID != nil)
		}
		if e.EscalatedToUserID == nil {
			s.log.Warn("escalation has no recipient",
				zap.Int64("escalation_id", e.ID),
				zap.Int("level", e.EscalationLevel))
			continue
		}
		if s.notifier != nil {
			s.notifier.Dispatch(e.ID)
		}
	}
}

func userSkill(tx *gorm.DB, userID *int64) (int, error) {
	if userID == nil {
		return model.SkillHelper, nil
	}
	var u model.User
	if err := tx.Select("id", "maintenance_skill_level").First(&u, *userID).Error; err != nil {
		return 0, lookup(err, "user %d", *userID)
	}
	return u.MaintenanceSkillLevel, nil
}

func escalationStatusValues(statuses ...escalation.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// unsettled are the escalation statuses that still need attention.
var unsettled = escalationStatusValues(escalation.Open, escalation.Acknowledged)
