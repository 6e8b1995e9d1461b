package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/hours"
	"maintenance-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB opens a migrated in-memory database private to the test.
func newSQLiteDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// newPooledSQLiteDB opens a file-backed database without a connection cap, so concurrent
// transactions really overlap. Writers wait on each other through the busy timeout.
func newPooledSQLiteDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "maint.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

type recordingNotifier struct {
	ids []int64
}

func (n *recordingNotifier) Dispatch(id int64) {
	n.ids = append(n.ids, id)
}

func newSQLiteStore(t *testing.T, opts Options) (*gormStore, *gorm.DB) {
	db := newSQLiteDB(t)
	return NewGormStore(db, opts).(*gormStore), db
}

var refTime = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func seedMachine(t *testing.T, db *gorm.DB, name string, hours float64) *model.Machine {
	m := &model.Machine{Name: name, Category: model.CategoryCNC, CurrentOperatingHours: hours}
	require.NoError(t, db.Create(m).Error)
	return m
}

func seedUser(t *testing.T, db *gorm.DB, name string, skill, order int) *model.User {
	u := &model.User{Name: name, MaintenanceSkillLevel: skill, PriorityOrder: order, IsActive: true, IsAvailable: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestGormStore_RecordReading_RejectsDecrease(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, Options{HoursPolicy: hours.PolicyReject})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "machines" WHERE "machines"."id" = \$1 ORDER BY "machines"."id" LIMIT \$2 FOR UPDATE`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "current_operating_hours"}).
			AddRow(7, "DMU 50", "cnc", 100.0))
	mock.ExpectRollback()

	_, err := s.RecordReading(context.Background(), ReadingInput{MachineID: 7, Hours: 90, RecordedAt: refTime})
	assert.ErrorIs(t, err, hours.ErrDecrease)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_MaterializePlanTask_InactivePlan(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "maintenance_plans" WHERE "maintenance_plans"."id" = \$1 ORDER BY "maintenance_plans"."id" LIMIT \$2 FOR UPDATE`).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "machine_id", "title", "is_active"}).
			AddRow(3, 1, "Lubricate spindle", false))
	mock.ExpectCommit()

	res, err := s.MaterializePlanTask(context.Background(), 3, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, res.Outcome)
	assert.Nil(t, res.Task)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_MaterializePlanTask_PlanNotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "maintenance_plans"`).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "maintenance_tasks" WHERE open_plan_id = \$1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := s.MaterializePlanTask(context.Background(), 9, refTime, 24*time.Hour)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayOf(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	testCases := []struct {
		name string
		at   time.Time
		loc  *time.Location
		want time.Time
	}{
		{"utc midday", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"late utc is next day in berlin", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), berlin, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dayOf(tc.at, tc.loc))
		})
	}
}
