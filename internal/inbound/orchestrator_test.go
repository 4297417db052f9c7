package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
	appointmentservice "github.com/smallbiznis/zapflow/internal/appointment/service"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	billingservice "github.com/smallbiznis/zapflow/internal/billing/service"
	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/zapflow/internal/catalog/service"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/config"
	conversationdomain "github.com/smallbiznis/zapflow/internal/conversation/domain"
	"github.com/smallbiznis/zapflow/internal/conversation/flow"
	conversationservice "github.com/smallbiznis/zapflow/internal/conversation/service"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	"github.com/smallbiznis/zapflow/internal/notification/queue"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	sendErr error
	sent    []string
}

func (g *fakeGateway) IsConnected(context.Context, int64) (bool, error) { return true, nil }

func (g *fakeGateway) SendText(_ context.Context, _ int64, _, text string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, text)
	return nil
}

type fixedQuota struct{ limit int }

func (f *fixedQuota) GetBySlug(context.Context, string) (*tenantdomain.Tenant, error) {
	return nil, tenantdomain.ErrTenantNotFound
}
func (f *fixedQuota) GetByID(context.Context, int64) (*tenantdomain.Tenant, error) {
	return nil, tenantdomain.ErrTenantNotFound
}
func (f *fixedQuota) ResolveQuota(context.Context, int64) (int, error) { return f.limit, nil }
func (f *fixedQuota) ListPlans(context.Context) ([]tenantdomain.Plan, error) {
	return nil, nil
}

type fixture struct {
	orch    *Orchestrator
	gateway *fakeGateway
	clock   *clock.FakeClock
	db      *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&conversationdomain.ConversationRecord{},
		&catalogdomain.ServiceOffering{},
		&billingdomain.BillingWindowEvent{},
		&billingdomain.MonthlyUsageCounter{},
		&appointmentdomain.Appointment{},
		&notificationdomain.NotificationJob{},
	))

	require.NoError(t, db.Create(&catalogdomain.ServiceOffering{
		ID: 101, TenantID: 1, Name: "Corte de cabelo",
		DurationMinutes: 30, PriceCents: 5000, SortOrder: 1,
		Active: true, Bookable: true,
	}).Error)
	require.NoError(t, db.Create(&catalogdomain.ServiceOffering{
		ID: 102, TenantID: 1, Name: "Manicure",
		DurationMinutes: 45, PriceCents: 3500, SortOrder: 2,
		Active: true, Bookable: true,
	}).Error)

	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	holder, err := config.NewRuntimeConfigHolder()
	require.NoError(t, err)
	log := zap.NewNop()

	catalog := catalogservice.NewService(catalogservice.ServiceParam{DB: db, Log: log})
	conversations := conversationservice.NewService(conversationservice.ServiceParam{
		DB: db, Log: log, Clock: fake, GenID: node,
	})
	engine := flow.NewEngine(flow.EngineParam{
		Log: log, Clock: fake, Catalog: catalog, Runtime: holder,
	})
	billing := billingservice.NewService(billingservice.ServiceParam{
		DB: db, Log: log, Clock: fake, GenID: node, TenantSvc: &fixedQuota{limit: 100},
	})
	q := queue.NewQueue(queue.QueueParam{DB: db, Log: log, Clock: fake, GenID: node})
	appointments := appointmentservice.NewService(appointmentservice.ServiceParam{
		DB: db, Log: log, Clock: fake, GenID: node, Queue: q,
	})

	gateway := &fakeGateway{}
	return &fixture{
		orch: NewOrchestrator(OrchestratorParam{
			Log:           log,
			Clock:         fake,
			Conversations: conversations,
			Engine:        engine,
			Billing:       billing,
			Gateway:       gateway,
			Appointments:  appointments,
		}),
		gateway: gateway,
		clock:   fake,
		db:      db,
	}
}

func (f *fixture) handle(t *testing.T, text string) *Outcome {
	t.Helper()
	out, err := f.orch.Handle(context.Background(), Message{
		TenantID:         1,
		RecipientAddress: "+5511999990000",
		Text:             text,
		MessageAt:        f.clock.Now(),
	})
	require.NoError(t, err)
	return out
}

func TestFullBookingJourney(t *testing.T) {
	f := newFixture(t)

	out := f.handle(t, "agendar")
	assert.Equal(t, conversationdomain.StateChooseService, out.State)
	assert.True(t, out.NewConversation)
	assert.True(t, out.ReplySent)

	out = f.handle(t, "1")
	assert.Equal(t, conversationdomain.StateChooseDate, out.State)

	out = f.handle(t, "amanhã")
	assert.Equal(t, conversationdomain.StateChooseTime, out.State)

	out = f.handle(t, "14:30")
	assert.Equal(t, conversationdomain.StateConfirm, out.State)
	assert.Contains(t, out.Reply, "Corte de cabelo")

	out = f.handle(t, "sim")
	assert.Equal(t, conversationdomain.StateDone, out.State)
	require.NotZero(t, out.AppointmentID)

	var appt appointmentdomain.Appointment
	require.NoError(t, f.db.First(&appt, "id = ?", out.AppointmentID).Error)
	assert.Equal(t, "2026-08-28", appt.Date)
	assert.Equal(t, "14:30", appt.Time)
	assert.Equal(t, appointmentdomain.StatusScheduled, appt.Status)

	var job notificationdomain.NotificationJob
	require.NoError(t, f.db.First(&job, "template_key = ?", templatedomain.KeyBookingConfirmed).Error)
	assert.Equal(t, "+5511999990000", job.RecipientAddress)

	var record conversationdomain.ConversationRecord
	require.NoError(t, f.db.First(&record, "id = ?", out.ConversationID).Error)
	assert.Equal(t, appt.ID.String(), record.Context[conversationdomain.CtxAppointmentID])

	// The whole journey happened inside one 24h window.
	var events int64
	require.NoError(t, f.db.Model(&billingdomain.BillingWindowEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	assert.Len(t, f.gateway.sent, 5)
}

func TestWindowExpiryStartsSecondBillableConversation(t *testing.T) {
	f := newFixture(t)

	out := f.handle(t, "oi")
	assert.True(t, out.NewConversation)

	f.clock.Advance(25 * time.Hour)
	out = f.handle(t, "oi de novo")
	assert.True(t, out.NewConversation)

	var events int64
	require.NoError(t, f.db.Model(&billingdomain.BillingWindowEvent{}).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestReplyAttemptSurvivesGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.sendErr = errors.New("bridge down")

	out := f.handle(t, "agendar")
	require.NotNil(t, out)
	assert.False(t, out.ReplySent)
	assert.NotEmpty(t, out.Reply)
	// The transition is still persisted.
	assert.Equal(t, conversationdomain.StateChooseService, out.State)
}

func TestBillingFailureDoesNotBlockReply(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&billingdomain.BillingWindowEvent{}))

	out := f.handle(t, "agendar")
	assert.True(t, out.ReplySent)
	assert.False(t, out.NewConversation)
	assert.Equal(t, conversationdomain.StateChooseService, out.State)
}

func TestHandoffInterceptsMidFlow(t *testing.T) {
	f := newFixture(t)

	f.handle(t, "agendar")
	out := f.handle(t, "falar com atendente")
	assert.Equal(t, conversationdomain.StateHumanHandoff, out.State)

	// No replies while handed off.
	sentBefore := len(f.gateway.sent)
	out = f.handle(t, "qualquer coisa")
	assert.Equal(t, conversationdomain.StateHumanHandoff, out.State)
	assert.Len(t, f.gateway.sent, sentBefore)
}

func TestMissingRecipientRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Handle(context.Background(), Message{TenantID: 1})
	assert.ErrorIs(t, err, conversationdomain.ErrInvalidRecipient)
}
