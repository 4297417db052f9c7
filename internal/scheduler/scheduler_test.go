package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/config"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	"github.com/smallbiznis/zapflow/internal/notification/queue"
	obsmetrics "github.com/smallbiznis/zapflow/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeReminderProducer struct {
	scans    int
	horizons []time.Duration
	produced int
	err      error
}

func (f *fakeReminderProducer) ScanDueReminders(_ context.Context, horizon time.Duration) (int, error) {
	f.scans++
	f.horizons = append(f.horizons, horizon)
	return f.produced, f.err
}

type fixture struct {
	db        *gorm.DB
	sched     *Scheduler
	queue     notificationdomain.Queue
	reminders *fakeReminderProducer
	clock     *clock.FakeClock
	node      *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&notificationdomain.NotificationJob{}))

	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	holder, err := config.NewRuntimeConfigHolder()
	require.NoError(t, err)

	q := queue.NewQueue(queue.QueueParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		GenID: node,
	})
	reminders := &fakeReminderProducer{}

	return &fixture{
		db: db,
		sched: &Scheduler{
			log:          zap.NewNop(),
			clock:        fake,
			runtime:      holder,
			queue:        q,
			appointments: reminders,
			metrics:      obsmetrics.Worker(),
		},
		queue:     q,
		reminders: reminders,
		clock:     fake,
		node:      node,
	}
}

func (f *fixture) seedJob(t *testing.T, status notificationdomain.JobStatus, settledAt time.Time) {
	t.Helper()
	job := &notificationdomain.NotificationJob{
		ID:               f.node.Generate(),
		TenantID:         f.node.Generate(),
		RecipientAddress: "+5511999990000",
		TemplateKey:      "booking_confirmed",
		Status:           status,
		NextAttemptAt:    settledAt,
	}
	switch status {
	case notificationdomain.JobStatusCompleted:
		job.CompletedAt = &settledAt
	case notificationdomain.JobStatusFailed:
		job.FailedAt = &settledAt
	}
	require.NoError(t, f.db.Create(job).Error)
}

func (f *fixture) countJobs(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&notificationdomain.NotificationJob{}).Count(&n).Error)
	return n
}

func TestRetentionJobPurgesSettledJobs(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	// Past retention: completed kept 1h, failed kept 7d by default.
	f.seedJob(t, notificationdomain.JobStatusCompleted, now.Add(-2*time.Hour))
	f.seedJob(t, notificationdomain.JobStatusFailed, now.Add(-8*24*time.Hour))
	// Inside retention.
	f.seedJob(t, notificationdomain.JobStatusCompleted, now.Add(-10*time.Minute))
	f.seedJob(t, notificationdomain.JobStatusFailed, now.Add(-time.Hour))
	// Waiting jobs are never purged regardless of age.
	f.seedJob(t, notificationdomain.JobStatusWaiting, now.Add(-30*24*time.Hour))

	require.NoError(t, f.sched.RetentionJob(context.Background()))
	assert.EqualValues(t, 3, f.countJobs(t))
}

func TestReminderJobDelegatesConfiguredHorizon(t *testing.T) {
	f := newFixture(t)
	f.reminders.produced = 2

	require.NoError(t, f.sched.ReminderJob(context.Background()))
	require.Equal(t, 1, f.reminders.scans)
	assert.Equal(t, 24*time.Hour, f.reminders.horizons[0])
}

func TestRunOnceHonorsJobIntervals(t *testing.T) {
	f := newFixture(t)

	// First pass runs everything.
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, f.reminders.scans)

	// One minute later neither interval has elapsed (scan 5m, clean 10m).
	f.clock.Advance(time.Minute)
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, f.reminders.scans)

	// Past the scan interval the reminder job runs again.
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 2, f.reminders.scans)
}

func TestRunOnceSurfacesJobErrors(t *testing.T) {
	f := newFixture(t)
	f.reminders.err = assert.AnError

	err := f.sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "reminder scan")
}
