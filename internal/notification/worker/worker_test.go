package worker

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
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	templateservice "github.com/smallbiznis/zapflow/internal/template/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	connected bool
	sendErr   error
	sent      []string
}

func (g *fakeGateway) IsConnected(context.Context, int64) (bool, error) {
	return g.connected, nil
}

func (g *fakeGateway) SendText(_ context.Context, _ int64, _, text string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, text)
	return nil
}

type fixture struct {
	db      *gorm.DB
	worker  *Worker
	queue   notificationdomain.Queue
	gateway *fakeGateway
	clock   *clock.FakeClock
	tmplSvc templatedomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&notificationdomain.NotificationJob{},
		&templatedomain.MessageTemplate{},
	))

	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	holder, err := config.NewRuntimeConfigHolder()
	require.NoError(t, err)

	gateway := &fakeGateway{connected: true}
	tmplSvc := templateservice.NewService(templateservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		GenID: node,
	})

	return &fixture{
		db: db,
		worker: NewWorker(WorkerParam{
			DB:        db,
			Log:       zap.NewNop(),
			Clock:     fake,
			Runtime:   holder,
			Gateway:   gateway,
			Templates: tmplSvc,
		}),
		queue: queue.NewQueue(queue.QueueParam{
			DB:    db,
			Log:   zap.NewNop(),
			Clock: fake,
			GenID: node,
		}),
		gateway: gateway,
		clock:   fake,
		tmplSvc: tmplSvc,
	}
}

func (f *fixture) enqueue(t *testing.T) *notificationdomain.NotificationJob {
	t.Helper()
	job, err := f.queue.Enqueue(context.Background(), notificationdomain.EnqueueRequest{
		TenantID:         1,
		RecipientAddress: "+5511999990000",
		TemplateKey:      templatedomain.KeyBookingConfirmed,
		Variables: map[string]string{
			"clientName":  "Maria",
			"serviceName": "Corte",
			"date":        "28/08/2026",
			"time":        "14:30",
		},
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *notificationdomain.NotificationJob {
	t.Helper()
	var job notificationdomain.NotificationJob
	require.NoError(t, f.db.First(&job, "id = ?", id).Error)
	return &job
}

func TestDeliverySuccess(t *testing.T) {
	f := newFixture(t)
	job := f.enqueue(t)

	processed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got := f.reload(t, job.ID)
	assert.Equal(t, notificationdomain.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.Len(t, f.gateway.sent, 1)
	assert.Contains(t, f.gateway.sent[0], "Maria")
	assert.Contains(t, f.gateway.sent[0], "Corte")
	// Unresolved placeholders stay verbatim instead of blocking delivery.
	assert.Contains(t, f.gateway.sent[0], "{{tenantDisplayName}}")
}

func TestDisabledTemplateTerminatesWithoutRetry(t *testing.T) {
	f := newFixture(t)

	_, err := f.tmplSvc.Resolve(context.Background(), 1, templatedomain.KeyBookingConfirmed)
	require.NoError(t, err)
	disabled := false
	_, err = f.tmplSvc.Update(context.Background(), 1, templatedomain.KeyBookingConfirmed,
		templatedomain.UpdateRequest{Enabled: &disabled})
	require.NoError(t, err)

	job := f.enqueue(t)

	processed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got := f.reload(t, job.ID)
	assert.Equal(t, notificationdomain.JobStatusFailed, got.Status)
	assert.Equal(t, 0, got.AttemptCount, "a business outcome must not consume a retry attempt")
	assert.Equal(t, notificationdomain.ReasonTemplateDisabled, got.LastError)
	assert.Empty(t, f.gateway.sent)
}

func TestDisconnectedSessionRetriesThenFails(t *testing.T) {
	f := newFixture(t)
	f.gateway.connected = false
	job := f.enqueue(t)

	maxAttempts := config.DefaultRuntimeConfig().Queue.MaxAttempts
	var lastDelay time.Duration

	for attempt := 1; attempt < maxAttempts; attempt++ {
		processed, err := f.worker.RunOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, processed, "attempt %d", attempt)

		got := f.reload(t, job.ID)
		assert.Equal(t, notificationdomain.JobStatusWaiting, got.Status)
		assert.Equal(t, attempt, got.AttemptCount)
		assert.Contains(t, got.LastError, notificationdomain.ReasonSessionNotConnected)

		delay := got.NextAttemptAt.Sub(f.clock.Now())
		assert.Greater(t, delay, lastDelay, "backoff must strictly increase")
		lastDelay = delay

		// Nothing is due until the backoff elapses.
		processed, err = f.worker.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, processed)

		f.clock.Advance(delay)
	}

	processed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	got := f.reload(t, job.ID)
	assert.Equal(t, notificationdomain.JobStatusFailed, got.Status)
	assert.Equal(t, maxAttempts, got.AttemptCount)
	assert.NotNil(t, got.FailedAt)
}

func TestStaleActiveJobIsReclaimed(t *testing.T) {
	f := newFixture(t)
	job := f.enqueue(t)

	// A worker claimed the job and died before delivering.
	require.NoError(t, f.db.Model(&notificationdomain.NotificationJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":     notificationdomain.JobStatusActive,
			"updated_at": f.clock.Now(),
		}).Error)

	// Inside the lease the claim is respected.
	processed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Equal(t, notificationdomain.JobStatusActive, f.reload(t, job.ID).Status)

	// Past the lease the job is claimed again and delivered.
	lease := config.DefaultRuntimeConfig().Queue.ClaimLease
	f.clock.Advance(lease + time.Second)

	processed, err = f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	got := f.reload(t, job.ID)
	assert.Equal(t, notificationdomain.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.Len(t, f.gateway.sent, 1)
}

func TestRetentionPurges(t *testing.T) {
	f := newFixture(t)
	job := f.enqueue(t)

	_, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, notificationdomain.JobStatusCompleted, f.reload(t, job.ID).Status)

	f.clock.Advance(2 * time.Hour)
	purged, err := f.queue.PurgeCompletedBefore(context.Background(), f.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
