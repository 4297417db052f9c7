package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	apikeydomain "github.com/smallbiznis/zapflow/internal/apikey/domain"
	"github.com/smallbiznis/zapflow/internal/apikey/repository"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (apikeydomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&apikeydomain.APIKey{}))

	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		GenID: node,
		Repo:  repository.Provide(),
	}), fake
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newService(t)

	secret, err := svc.Create(context.Background(), 1, apikeydomain.CreateRequest{Name: "webhook"})
	require.NoError(t, err)
	assert.Contains(t, secret.APIKey, "zf_live_key_")

	key, err := svc.Verify(context.Background(), 1, secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, secret.KeyID, key.KeyID)
	assert.NotNil(t, key.LastUsedAt)

	_, err = svc.Verify(context.Background(), 2, secret.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized, "keys are tenant-scoped")

	_, err = svc.Verify(context.Background(), 1, "zf_live_key_bogus")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)
}

func TestRotateKeepsOldKeyThroughGrace(t *testing.T) {
	svc, fake := newService(t)

	old, err := svc.Create(context.Background(), 1, apikeydomain.CreateRequest{Name: "webhook"})
	require.NoError(t, err)

	next, err := svc.Rotate(context.Background(), 1, old.KeyID)
	require.NoError(t, err)
	assert.NotEqual(t, old.KeyID, next.KeyID)

	// Inside the grace window both keys authenticate.
	_, err = svc.Verify(context.Background(), 1, old.APIKey)
	require.NoError(t, err)
	_, err = svc.Verify(context.Background(), 1, next.APIKey)
	require.NoError(t, err)

	fake.Advance(25 * time.Hour)
	_, err = svc.Verify(context.Background(), 1, old.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)
	_, err = svc.Verify(context.Background(), 1, next.APIKey)
	require.NoError(t, err)
}

func TestRevokeIsImmediate(t *testing.T) {
	svc, _ := newService(t)

	secret, err := svc.Create(context.Background(), 1, apikeydomain.CreateRequest{Name: "webhook"})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), 1, secret.KeyID))

	_, err = svc.Verify(context.Background(), 1, secret.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	err = svc.Revoke(context.Background(), 1, "key_missing")
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}
