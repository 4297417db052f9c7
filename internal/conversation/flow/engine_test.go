package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/config"
	conversationdomain "github.com/smallbiznis/zapflow/internal/conversation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type stubCatalog struct {
	offerings []catalogdomain.ServiceOffering
	err       error
}

func (s *stubCatalog) ListBookable(context.Context, int64) ([]catalogdomain.ServiceOffering, error) {
	return s.offerings, s.err
}

func (s *stubCatalog) Get(_ context.Context, _, serviceID int64) (*catalogdomain.ServiceOffering, error) {
	for i := range s.offerings {
		if int64(s.offerings[i].ID) == serviceID {
			return &s.offerings[i], nil
		}
	}
	return nil, catalogdomain.ErrServiceNotFound
}

func testRuntimeHolder(t *testing.T) *config.RuntimeConfigHolder {
	t.Helper()
	holder, err := config.NewRuntimeConfigHolder()
	require.NoError(t, err)
	return holder
}

func newTestEngine(t *testing.T, offerings []catalogdomain.ServiceOffering) (*Engine, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	engine := NewEngine(EngineParam{
		Log:     zap.NewNop(),
		Clock:   fake,
		Catalog: &stubCatalog{offerings: offerings},
		Runtime: testRuntimeHolder(t),
	})
	return engine, fake
}

func testOfferings() []catalogdomain.ServiceOffering {
	return []catalogdomain.ServiceOffering{
		{ID: snowflake.ID(101), Name: "Corte de Cabelo", PriceCents: 5000, SortOrder: 1},
		{ID: snowflake.ID(102), Name: "Manicure", PriceCents: 3500, SortOrder: 2},
	}
}

// step runs one Decide call and merges the patch the way the orchestrator
// does, returning the next state and context.
func step(t *testing.T, e *Engine, state conversationdomain.State, ctx datatypes.JSONMap, text, payload string) (Decision, datatypes.JSONMap) {
	t.Helper()
	d, err := e.Decide(context.Background(), Input{
		TenantID:  1,
		State:     state,
		Context:   ctx,
		Text:      text,
		PayloadID: payload,
	})
	require.NoError(t, err)
	return d, conversationdomain.MergeContext(ctx, d.Patch, d.ClearSelections)
}

func TestHappyPathAccumulatesSelections(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{}

	d, ctx := step(t, engine, conversationdomain.StateStart, ctx, "quero agendar", "")
	assert.Equal(t, conversationdomain.StateChooseService, d.NextState)
	assert.Contains(t, d.Reply, "Corte de Cabelo")

	d, ctx = step(t, engine, d.NextState, ctx, "", "service_101")
	assert.Equal(t, conversationdomain.StateChooseDate, d.NextState)
	assert.Equal(t, "101", conversationdomain.CtxString(ctx, conversationdomain.CtxServiceID))
	assert.Equal(t, "Corte de Cabelo", conversationdomain.CtxString(ctx, conversationdomain.CtxServiceName))

	d, ctx = step(t, engine, d.NextState, ctx, "amanhã", "")
	assert.Equal(t, conversationdomain.StateChooseTime, d.NextState)
	assert.Equal(t, "2026-08-28", conversationdomain.CtxString(ctx, conversationdomain.CtxDate))

	d, ctx = step(t, engine, d.NextState, ctx, "14h30", "")
	assert.Equal(t, conversationdomain.StateConfirm, d.NextState)
	assert.Equal(t, "14:30", conversationdomain.CtxString(ctx, conversationdomain.CtxTime))
	assert.Contains(t, d.Reply, "28/08/2026")

	d, ctx = step(t, engine, d.NextState, ctx, "sim", "")
	assert.Equal(t, conversationdomain.StateDone, d.NextState)
	require.NotNil(t, d.Booking)
	assert.Equal(t, int64(101), d.Booking.ServiceID)
	assert.Equal(t, "2026-08-28", d.Booking.Date)
	assert.Equal(t, "14:30", d.Booking.Time)
}

func TestStartUnrecognizedRendersMenu(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())

	d, _ := step(t, engine, conversationdomain.StateStart, datatypes.JSONMap{}, "oi", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Equal(t, msgMainMenu, d.Reply)
}

func TestStartEmptyCatalogApologizes(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	d, _ := step(t, engine, conversationdomain.StateStart, datatypes.JSONMap{}, "agendar", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Equal(t, msgEmptyCatalog, d.Reply)
}

func TestServiceSubstringAndIndexMatch(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())

	d, _ := step(t, engine, conversationdomain.StateChooseService, datatypes.JSONMap{}, "manicure", "")
	assert.Equal(t, conversationdomain.StateChooseDate, d.NextState)

	d, _ = step(t, engine, conversationdomain.StateChooseService, datatypes.JSONMap{}, "1", "")
	assert.Equal(t, conversationdomain.StateChooseDate, d.NextState)
	assert.Equal(t, "Corte de Cabelo", d.Patch[conversationdomain.CtxServiceName])
}

func TestThreeFailuresEscalateThenMenuResets(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{}

	var d Decision
	state := conversationdomain.StateChooseService
	for i := 0; i < 2; i++ {
		d, ctx = step(t, engine, state, ctx, "xyzzy", "")
		assert.Equal(t, conversationdomain.StateChooseService, d.NextState)
		assert.Equal(t, i+1, conversationdomain.CtxInt(ctx, conversationdomain.CtxAttemptCount))
	}

	d, ctx = step(t, engine, state, ctx, "xyzzy", "")
	assert.Equal(t, conversationdomain.StateHumanHandoff, d.NextState)
	assert.True(t, d.HandedOff)
	assert.Equal(t, msgEscalation, d.Reply)

	// Handoff is a sink: no automated reply.
	d, ctx = step(t, engine, conversationdomain.StateHumanHandoff, ctx, "alguém aí?", "")
	assert.Equal(t, conversationdomain.StateHumanHandoff, d.NextState)
	assert.False(t, d.HasReply)

	// Only the reset keyword re-enters START, with selections cleared.
	d, ctx = step(t, engine, conversationdomain.StateHumanHandoff, ctx, "menu", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Equal(t, 0, conversationdomain.CtxInt(ctx, conversationdomain.CtxAttemptCount))
	assert.Empty(t, conversationdomain.CtxString(ctx, conversationdomain.CtxServiceID))
}

func TestHandoffKeywordInterceptsAnyState(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())

	for _, state := range []conversationdomain.State{
		conversationdomain.StateStart,
		conversationdomain.StateChooseDate,
		conversationdomain.StateConfirm,
	} {
		d, _ := step(t, engine, state, datatypes.JSONMap{}, "quero falar com atendente", "")
		assert.Equal(t, conversationdomain.StateHumanHandoff, d.NextState, "state %s", state)
		assert.Equal(t, msgHandoffAck, d.Reply)
	}
}

func TestResetClearsStaleSelections(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{
		conversationdomain.CtxServiceID:   "101",
		conversationdomain.CtxServiceName: "Corte de Cabelo",
		conversationdomain.CtxDate:        "2026-08-28",
		"client_version":                  "v2", // unknown keys survive resets
	}

	d, ctx := step(t, engine, conversationdomain.StateChooseTime, ctx, "cancelar", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Empty(t, conversationdomain.CtxString(ctx, conversationdomain.CtxServiceID))
	assert.Empty(t, conversationdomain.CtxString(ctx, conversationdomain.CtxDate))
	assert.Equal(t, "v2", conversationdomain.CtxString(ctx, "client_version"))

	// No redundant reset from START: the menu re-render path handles it.
	d, _ = step(t, engine, conversationdomain.StateStart, ctx, "cancelar", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Equal(t, msgMainMenu, d.Reply)
}

func TestConfirmNoAbortsAndClears(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{
		conversationdomain.CtxServiceID: "101",
		conversationdomain.CtxDate:      "2026-08-28",
		conversationdomain.CtxTime:      "14:30",
	}

	d, ctx := step(t, engine, conversationdomain.StateConfirm, ctx, "não", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Nil(t, d.Booking)
	assert.Empty(t, conversationdomain.CtxString(ctx, conversationdomain.CtxServiceID))
}

func TestConfirmNegatedAffirmationAborts(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{
		conversationdomain.CtxServiceID: "101",
		conversationdomain.CtxDate:      "2026-08-28",
		conversationdomain.CtxTime:      "14:30",
	}

	// Carries both a yes and a no keyword; the negation must win.
	d, ctx := step(t, engine, conversationdomain.StateConfirm, ctx, "não confirmo", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Nil(t, d.Booking)
	assert.Empty(t, conversationdomain.CtxString(ctx, conversationdomain.CtxServiceID))
}

func TestConfirmUnrecognizedRepromptsWithoutAttempt(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{
		conversationdomain.CtxServiceName: "Corte de Cabelo",
		conversationdomain.CtxDate:        "2026-08-28",
		conversationdomain.CtxTime:        "14:30",
	}

	d, ctx := step(t, engine, conversationdomain.StateConfirm, ctx, "talvez", "")
	assert.Equal(t, conversationdomain.StateConfirm, d.NextState)
	assert.Equal(t, 0, conversationdomain.CtxInt(ctx, conversationdomain.CtxAttemptCount))
	assert.Contains(t, d.Reply, "Corte de Cabelo")
}

func TestDateParsing(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{conversationdomain.CtxServiceName: "Manicure"}

	d, _ := step(t, engine, conversationdomain.StateChooseDate, ctx, "hoje", "")
	assert.Equal(t, conversationdomain.StateChooseTime, d.NextState)
	assert.Equal(t, "2026-08-27", d.Patch[conversationdomain.CtxDate])

	d, _ = step(t, engine, conversationdomain.StateChooseDate, ctx, "dia 30/09", "")
	assert.Equal(t, "2026-09-30", d.Patch[conversationdomain.CtxDate])

	// A year-less date already past rolls into next year.
	d, _ = step(t, engine, conversationdomain.StateChooseDate, ctx, "10/01", "")
	assert.Equal(t, "2027-01-10", d.Patch[conversationdomain.CtxDate])

	// Structured payload wins over text.
	d, _ = step(t, engine, conversationdomain.StateChooseDate, ctx, "whatever", "date_2026-09-01")
	assert.Equal(t, "2026-09-01", d.Patch[conversationdomain.CtxDate])
}

func TestDoneReengagesFromScratch(t *testing.T) {
	engine, _ := newTestEngine(t, testOfferings())
	ctx := datatypes.JSONMap{
		conversationdomain.CtxServiceID: "101",
		conversationdomain.CtxDate:      "2026-08-28",
		conversationdomain.CtxTime:      "14:30",
	}

	d, ctx := step(t, engine, conversationdomain.StateDone, ctx, "obrigado", "")
	assert.Equal(t, conversationdomain.StateStart, d.NextState)
	assert.Empty(t, conversationdomain.CtxString(ctx, conversationdomain.CtxServiceID))
}

func TestCatalogFailureSurfacesError(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	engine := NewEngine(EngineParam{
		Log:     zap.NewNop(),
		Clock:   fake,
		Catalog: &stubCatalog{err: errors.New("store down")},
		Runtime: testRuntimeHolder(t),
	})

	_, err := engine.Decide(context.Background(), Input{
		TenantID: 1,
		State:    conversationdomain.StateStart,
		Context:  datatypes.JSONMap{},
		Text:     "agendar",
	})
	assert.Error(t, err)
}
