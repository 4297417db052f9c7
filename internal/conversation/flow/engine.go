// Package flow implements the scripted booking conversation as a pure
// decision function: one inbound message in, one transition out. It owns no
// persistence and sends nothing; the orchestrator does both.
package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/config"
	conversationdomain "github.com/smallbiznis/zapflow/internal/conversation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Input is one inbound message plus the conversation it lands on.
type Input struct {
	TenantID  int64
	State     conversationdomain.State
	Context   datatypes.JSONMap
	Text      string
	PayloadID string
	MessageAt time.Time
}

// BookingRequest carries the finalized selection out of a confirmed flow.
type BookingRequest struct {
	ServiceID   int64
	ServiceName string
	Date        string
	Time        string
	ClientName  string
}

// Decision is the full outcome of one flow step. Patch is merged into a new
// context value by the caller; the input context is never mutated here.
type Decision struct {
	NextState       conversationdomain.State
	Reply           string
	HasReply        bool
	Patch           map[string]any
	ClearSelections bool
	HandedOff       bool
	Booking         *BookingRequest
}

type EngineParam struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Catalog catalogdomain.Service
	Runtime *config.RuntimeConfigHolder
}

// Engine drives the closed state set. Catalog lookups are its only I/O.
type Engine struct {
	log     *zap.Logger
	clock   clock.Clock
	catalog catalogdomain.Service
	runtime *config.RuntimeConfigHolder
}

func NewEngine(p EngineParam) *Engine {
	return &Engine{
		log:     p.Log.Named("conversation.flow"),
		clock:   p.Clock,
		catalog: p.Catalog,
		runtime: p.Runtime,
	}
}

// Decide interprets one inbound message. Errors are store failures only;
// user confusion is never an error, it is a re-prompt or an escalation.
func (e *Engine) Decide(ctx context.Context, in Input) (Decision, error) {
	cfg := e.runtime.Get().Flow

	if !in.State.Valid() {
		return Decision{}, conversationdomain.ErrInvalidState
	}

	// Global interception runs before per-state dispatch: handoff first,
	// reset second, both driven by the keyword tables.
	if matchesAny(in.Text, cfg.HandoffKeywords) {
		return Decision{
			NextState: conversationdomain.StateHumanHandoff,
			Reply:     msgHandoffAck,
			HasReply:  true,
			HandedOff: true,
			Patch:     map[string]any{conversationdomain.CtxAttemptCount: nil},
		}, nil
	}
	if matchesAny(in.Text, cfg.ResetKeywords) && in.State != conversationdomain.StateStart {
		return Decision{
			NextState:       conversationdomain.StateStart,
			Reply:           msgMainMenu,
			HasReply:        true,
			ClearSelections: true,
		}, nil
	}

	switch in.State {
	case conversationdomain.StateStart:
		return e.decideStart(ctx, in, cfg)
	case conversationdomain.StateChooseService:
		return e.decideChooseService(ctx, in, cfg)
	case conversationdomain.StateChooseDate:
		return e.decideChooseDate(in, cfg)
	case conversationdomain.StateChooseTime:
		return e.decideChooseTime(in, cfg)
	case conversationdomain.StateConfirm:
		return e.decideConfirm(in, cfg)
	case conversationdomain.StateDone:
		// Re-engagement, not continuation.
		return Decision{
			NextState:       conversationdomain.StateStart,
			Reply:           msgMainMenu,
			HasReply:        true,
			ClearSelections: true,
		}, nil
	case conversationdomain.StateHumanHandoff:
		// A human owns the channel; explicit no-response signal.
		return Decision{
			NextState: conversationdomain.StateHumanHandoff,
			HandedOff: true,
		}, nil
	}

	return Decision{}, conversationdomain.ErrInvalidState
}

func (e *Engine) decideStart(ctx context.Context, in Input, cfg config.FlowConfig) (Decision, error) {
	if !matchesAny(in.Text, cfg.BookingKeywords) {
		// Unrecognized input re-renders the menu; START is idempotent.
		return Decision{
			NextState: conversationdomain.StateStart,
			Reply:     msgMainMenu,
			HasReply:  true,
		}, nil
	}

	offerings, err := e.catalog.ListBookable(ctx, in.TenantID)
	if err != nil {
		return Decision{}, err
	}
	if len(offerings) == 0 {
		return Decision{
			NextState: conversationdomain.StateStart,
			Reply:     msgEmptyCatalog,
			HasReply:  true,
		}, nil
	}

	return Decision{
		NextState: conversationdomain.StateChooseService,
		Reply:     renderServiceList(offerings),
		HasReply:  true,
		Patch:     map[string]any{conversationdomain.CtxAttemptCount: nil},
	}, nil
}

func (e *Engine) decideChooseService(ctx context.Context, in Input, cfg config.FlowConfig) (Decision, error) {
	offerings, err := e.catalog.ListBookable(ctx, in.TenantID)
	if err != nil {
		return Decision{}, err
	}

	selected := resolveService(in, offerings)
	if selected == nil {
		return e.retryOrEscalate(in, cfg, retryService), nil
	}

	dates := e.candidateDates(cfg)
	return Decision{
		NextState: conversationdomain.StateChooseDate,
		Reply:     renderDateList(selected.Name, dates),
		HasReply:  true,
		Patch: map[string]any{
			conversationdomain.CtxServiceID:    selected.ID.String(),
			conversationdomain.CtxServiceName:  selected.Name,
			conversationdomain.CtxAttemptCount: nil,
		},
	}, nil
}

func (e *Engine) decideChooseDate(in Input, cfg config.FlowConfig) (Decision, error) {
	now := e.clock.Now()

	date, ok := parseDatePayload(in.PayloadID)
	if !ok {
		date, ok = parseDateText(in.Text, now, cfg.TodayKeywords, cfg.TomorrowKeywords)
	}
	if !ok || date.Before(dateOnly(now)) {
		return e.retryOrEscalate(in, cfg, retryDate), nil
	}

	slots := e.candidateSlots(cfg)
	return Decision{
		NextState: conversationdomain.StateChooseTime,
		Reply:     renderTimeList(date, slots),
		HasReply:  true,
		Patch: map[string]any{
			conversationdomain.CtxDate:         date.Format(dateLayout),
			conversationdomain.CtxAttemptCount: nil,
		},
	}, nil
}

func (e *Engine) decideChooseTime(in Input, cfg config.FlowConfig) (Decision, error) {
	timeOfDay, ok := parseTimePayload(in.PayloadID)
	if !ok {
		timeOfDay, ok = parseTimeText(in.Text)
	}
	if !ok {
		return e.retryOrEscalate(in, cfg, retryTime), nil
	}

	serviceName := conversationdomain.CtxString(in.Context, conversationdomain.CtxServiceName)
	date := conversationdomain.CtxString(in.Context, conversationdomain.CtxDate)

	return Decision{
		NextState: conversationdomain.StateConfirm,
		Reply:     renderConfirmation(serviceName, date, timeOfDay),
		HasReply:  true,
		Patch: map[string]any{
			conversationdomain.CtxTime:                timeOfDay,
			conversationdomain.CtxPendingConfirmation: true,
			conversationdomain.CtxAttemptCount:        nil,
		},
	}, nil
}

func (e *Engine) decideConfirm(in Input, cfg config.FlowConfig) (Decision, error) {
	serviceName := conversationdomain.CtxString(in.Context, conversationdomain.CtxServiceName)
	date := conversationdomain.CtxString(in.Context, conversationdomain.CtxDate)
	timeOfDay := conversationdomain.CtxString(in.Context, conversationdomain.CtxTime)

	// Negations win over affirmations: "não confirmo" contains a yes
	// keyword but must abort, not book.
	switch {
	case in.PayloadID == payloadConfirmNo || matchesAny(in.Text, cfg.NoKeywords):
		return Decision{
			NextState:       conversationdomain.StateStart,
			Reply:           msgAborted,
			HasReply:        true,
			ClearSelections: true,
		}, nil
	case in.PayloadID == payloadConfirmYes || matchesAny(in.Text, cfg.YesKeywords):
		return Decision{
			NextState: conversationdomain.StateDone,
			Reply:     renderBooked(serviceName, date, timeOfDay),
			HasReply:  true,
			Patch: map[string]any{
				conversationdomain.CtxPendingConfirmation: nil,
				conversationdomain.CtxAttemptCount:        nil,
			},
			Booking: &BookingRequest{
				ServiceID:   conversationdomain.CtxInt64(in.Context, conversationdomain.CtxServiceID),
				ServiceName: serviceName,
				Date:        date,
				Time:        timeOfDay,
				ClientName:  conversationdomain.CtxString(in.Context, conversationdomain.CtxClientName),
			},
		}, nil
	default:
		// Re-prompt without consuming the attempt budget.
		return Decision{
			NextState: conversationdomain.StateConfirm,
			Reply:     renderConfirmation(serviceName, date, timeOfDay),
			HasReply:  true,
		}, nil
	}
}

// retryOrEscalate applies the bounded-patience policy: same-state re-prompts
// increment the attempt counter, and reaching the threshold hands the
// conversation to a human instead of looping forever.
func (e *Engine) retryOrEscalate(in Input, cfg config.FlowConfig, prompt string) Decision {
	attempts := conversationdomain.CtxInt(in.Context, conversationdomain.CtxAttemptCount) + 1
	if attempts >= cfg.MaxAttempts {
		return Decision{
			NextState: conversationdomain.StateHumanHandoff,
			Reply:     msgEscalation,
			HasReply:  true,
			HandedOff: true,
			Patch:     map[string]any{conversationdomain.CtxAttemptCount: nil},
		}
	}
	return Decision{
		NextState: in.State,
		Reply:     renderRetry(prompt, cfg.MaxAttempts-attempts),
		HasReply:  true,
		Patch:     map[string]any{conversationdomain.CtxAttemptCount: attempts},
	}
}

// resolveService matches a structured payload id, a menu index, or a
// substring of the service name.
func resolveService(in Input, offerings []catalogdomain.ServiceOffering) *catalogdomain.ServiceOffering {
	if id, ok := parseServicePayload(in.PayloadID); ok {
		for i := range offerings {
			if int64(offerings[i].ID) == id {
				return &offerings[i]
			}
		}
		return nil
	}

	text := strings.TrimSpace(in.Text)
	if idx, err := strconv.Atoi(text); err == nil {
		if idx >= 1 && idx <= len(offerings) {
			return &offerings[idx-1]
		}
		return nil
	}

	norm := normalize(text)
	if len(norm) < 3 {
		return nil
	}
	for i := range offerings {
		if strings.Contains(normalize(offerings[i].Name), norm) {
			return &offerings[i]
		}
	}
	return nil
}

// candidateDates is the rolling list of bookable days starting today.
func (e *Engine) candidateDates(cfg config.FlowConfig) []time.Time {
	days := cfg.CandidateDays
	if days < 1 {
		days = 7
	}
	start := dateOnly(e.clock.Now())
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
	}
	return dates
}

func (e *Engine) candidateSlots(cfg config.FlowConfig) []string {
	slots := make([]string, 0, cfg.SlotEndHour-cfg.SlotStartHour)
	for h := cfg.SlotStartHour; h < cfg.SlotEndHour; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}
