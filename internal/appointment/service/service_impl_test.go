package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	"github.com/smallbiznis/zapflow/internal/notification/queue"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (appointmentdomain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&appointmentdomain.Appointment{},
		&notificationdomain.NotificationJob{},
	))

	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	q := queue.NewQueue(queue.QueueParam{DB: db, Log: zap.NewNop(), Clock: fake, GenID: node})
	svc := NewService(ServiceParam{DB: db, Log: zap.NewNop(), Clock: fake, GenID: node, Queue: q})
	return svc, fake, db
}

func createBooking(t *testing.T, svc appointmentdomain.Service, date, timeOfDay string) *appointmentdomain.Appointment {
	t.Helper()
	appt, err := svc.Create(context.Background(), appointmentdomain.CreateRequest{
		TenantID:         1,
		ConversationID:   10,
		ServiceID:        101,
		ServiceName:      "Corte de cabelo",
		ClientName:       "Maria",
		RecipientAddress: "+5511999990000",
		Date:             date,
		Time:             timeOfDay,
	})
	require.NoError(t, err)
	return appt
}

func jobsByTemplate(t *testing.T, db *gorm.DB, key string) []notificationdomain.NotificationJob {
	t.Helper()
	var jobs []notificationdomain.NotificationJob
	require.NoError(t, db.Where("template_key = ?", key).Find(&jobs).Error)
	return jobs
}

func TestCreateBooksAndEnqueuesConfirmation(t *testing.T) {
	svc, _, db := newService(t)

	appt := createBooking(t, svc, "2026-08-28", "14:30")
	assert.Equal(t, appointmentdomain.StatusScheduled, appt.Status)
	assert.Equal(t, time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC), appt.StartsAt)

	jobs := jobsByTemplate(t, db, templatedomain.KeyBookingConfirmed)
	require.Len(t, jobs, 1)
	assert.Equal(t, "+5511999990000", jobs[0].RecipientAddress)
	vars := jobs[0].StringVariables()
	assert.Equal(t, "Maria", vars["clientName"])
	assert.Equal(t, "28/08/2026", vars["date"])
	assert.Equal(t, "14:30", vars["time"])
}

func TestCreateRejectsMalformedSchedule(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), appointmentdomain.CreateRequest{
		TenantID: 1, ConversationID: 10, ServiceID: 101,
		RecipientAddress: "+5511999990000",
		Date:             "28/08/2026", Time: "14:30",
	})
	assert.ErrorIs(t, err, appointmentdomain.ErrInvalidSchedule)
}

func TestCancelEnqueuesNoticeAndIsTerminal(t *testing.T) {
	svc, _, db := newService(t)
	appt := createBooking(t, svc, "2026-08-28", "14:30")

	cancelled, err := svc.Cancel(context.Background(), 1, int64(appt.ID))
	require.NoError(t, err)
	assert.Equal(t, appointmentdomain.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	require.Len(t, jobsByTemplate(t, db, templatedomain.KeyAppointmentCancelled), 1)

	_, err = svc.Cancel(context.Background(), 1, int64(appt.ID))
	assert.ErrorIs(t, err, appointmentdomain.ErrAppointmentCancelled)
}

func TestCancelIsTenantScoped(t *testing.T) {
	svc, _, _ := newService(t)
	appt := createBooking(t, svc, "2026-08-28", "14:30")

	_, err := svc.Cancel(context.Background(), 2, int64(appt.ID))
	assert.ErrorIs(t, err, appointmentdomain.ErrAppointmentNotFound)
}

func TestReminderScanProducesOncePerAppointment(t *testing.T) {
	svc, fake, db := newService(t)

	inHorizon := createBooking(t, svc, "2026-08-28", "09:00")
	createBooking(t, svc, "2026-09-15", "09:00") // outside horizon
	past := createBooking(t, svc, "2026-08-27", "08:00")
	_ = past // already started, never reminded

	produced, err := svc.ScanDueReminders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, produced)

	jobs := jobsByTemplate(t, db, templatedomain.KeyAppointmentReminder)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].AppointmentID)
	assert.Equal(t, int64(inHorizon.ID), int64(*jobs[0].AppointmentID))

	// A later scan must not remind the same appointment again.
	fake.Advance(time.Hour)
	produced, err = svc.ScanDueReminders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, produced)
}

func TestListOrdersByStart(t *testing.T) {
	svc, _, _ := newService(t)
	createBooking(t, svc, "2026-08-29", "10:00")
	createBooking(t, svc, "2026-08-28", "10:00")

	rows, err := svc.List(context.Background(), 1, appointmentdomain.StatusScheduled, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].StartsAt.Before(rows[1].StartsAt))
}
