package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubTenants struct {
	quota int
}

func (s *stubTenants) GetBySlug(context.Context, string) (*tenantdomain.Tenant, error) {
	return nil, tenantdomain.ErrTenantNotFound
}

func (s *stubTenants) GetByID(context.Context, int64) (*tenantdomain.Tenant, error) {
	return nil, tenantdomain.ErrTenantNotFound
}

func (s *stubTenants) ResolveQuota(context.Context, int64) (int, error) {
	return s.quota, nil
}

func (s *stubTenants) ListPlans(context.Context) ([]tenantdomain.Plan, error) {
	return nil, nil
}

func newTracker(t *testing.T, quota int, migrate bool) (billingdomain.Tracker, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	if migrate {
		require.NoError(t, db.AutoMigrate(
			&billingdomain.BillingWindowEvent{},
			&billingdomain.MonthlyUsageCounter{},
		))
	}

	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	tracker := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fake,
		GenID:     node,
		TenantSvc: &stubTenants{quota: quota},
	})
	return tracker, fake, db
}

func process(t *testing.T, tracker billingdomain.Tracker, tenantID, conversationID int64) billingdomain.MessageBillingResult {
	t.Helper()
	return tracker.ProcessMessageBilling(context.Background(), billingdomain.MessageBillingRequest{
		TenantID:         tenantID,
		ConversationID:   conversationID,
		RecipientAddress: "+5511988887777",
	})
}

func TestSecondMessageInsideWindowReusesIt(t *testing.T) {
	tracker, fake, _ := newTracker(t, 100, true)

	first := process(t, tracker, 1, 10)
	assert.True(t, first.ShouldProcess)
	assert.True(t, first.NewConversation)
	assert.False(t, first.IsExcess)
	assert.Equal(t, 1, first.ConversationsUsed)

	fake.Advance(2 * time.Hour)

	second := process(t, tracker, 1, 10)
	assert.True(t, second.ShouldProcess)
	assert.False(t, second.NewConversation, "a message inside the 24h window must not open a new one")
	assert.True(t, second.UsageKnown)

	usage, err := tracker.CurrentUsage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)

	events, err := tracker.ListEvents(context.Background(), billingdomain.ListEventsRequest{ConversationID: 10})
	require.NoError(t, err)
	assert.Len(t, events.Events, 1)
}

func TestMessageAfterWindowExpiryOpensNewOne(t *testing.T) {
	tracker, fake, _ := newTracker(t, 100, true)

	process(t, tracker, 1, 10)
	fake.Advance(25 * time.Hour)

	res := process(t, tracker, 1, 10)
	assert.True(t, res.NewConversation)
	assert.Equal(t, 2, res.ConversationsUsed)

	events, err := tracker.ListEvents(context.Background(), billingdomain.ListEventsRequest{ConversationID: 10})
	require.NoError(t, err)
	assert.Len(t, events.Events, 2)
}

func TestConversationAtQuotaIsExcessAndStillProcessed(t *testing.T) {
	tracker, fake, _ := newTracker(t, 2, true)

	process(t, tracker, 1, 10)
	fake.Advance(30 * time.Hour)
	process(t, tracker, 1, 11)
	fake.Advance(30 * time.Hour)

	res := process(t, tracker, 1, 12)
	assert.True(t, res.ShouldProcess, "quota state never blocks a message")
	assert.True(t, res.NewConversation)
	assert.True(t, res.IsExcess)
	assert.Equal(t, 2, res.ConversationsUsed, "used stays at the limit once exceeded")

	usage, err := tracker.CurrentUsage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Used)
	assert.Equal(t, 1, usage.Excess)
	assert.Equal(t, float64(100), usage.Percentage)
}

func TestUnlimitedPlanNeverExcess(t *testing.T) {
	tracker, fake, _ := newTracker(t, tenantdomain.QuotaUnlimited, true)

	for i := int64(0); i < 5; i++ {
		res := process(t, tracker, 1, 20+i)
		assert.False(t, res.IsExcess)
		fake.Advance(30 * time.Hour)
	}

	usage, err := tracker.CurrentUsage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.Used)
	assert.Zero(t, usage.Excess)
}

func TestStoreFailureAppliesSafeDefault(t *testing.T) {
	// No migration: every store access fails, billing must still clear
	// the message for processing.
	tracker, _, _ := newTracker(t, 100, false)

	res := process(t, tracker, 1, 10)
	assert.True(t, res.ShouldProcess)
	assert.False(t, res.UsageKnown)
	assert.False(t, res.NewConversation)
}

func TestCounterSeededFromPlanQuota(t *testing.T) {
	tracker, _, db := newTracker(t, 40, true)

	process(t, tracker, 1, 10)

	var counter billingdomain.MonthlyUsageCounter
	require.NoError(t, db.First(&counter, "tenant_id = ?", 1).Error)
	assert.Equal(t, 40, counter.ConversationsLimit)
	assert.Equal(t, "2026-08", counter.YearMonth)
}

func TestFallbackLastMessageAtKeepsLegacyWindowAlive(t *testing.T) {
	tracker, fake, _ := newTracker(t, 100, true)

	last := fake.Now().Add(-3 * time.Hour)
	active, err := tracker.CheckActiveWindow(context.Background(), 99, &last)
	require.NoError(t, err)
	assert.True(t, active)

	stale := fake.Now().Add(-25 * time.Hour)
	active, err = tracker.CheckActiveWindow(context.Background(), 99, &stale)
	require.NoError(t, err)
	assert.False(t, active)
}
