// Package inbound coordinates one inbound message end to end: billing
// classification, flow decision, conversation persistence, reply delivery
// and booking finalization. It is intentionally thin; every rule lives in
// the component it calls.
package inbound

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/cloudmetrics"
	conversationdomain "github.com/smallbiznis/zapflow/internal/conversation/domain"
	"github.com/smallbiznis/zapflow/internal/conversation/flow"
	"github.com/smallbiznis/zapflow/internal/session"
	"github.com/smallbiznis/zapflow/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultChannel = "whatsapp"

// replyUnavailable covers flow decision failures: the client still gets an
// answer instead of silence.
const replyUnavailable = "Desculpe, não consegui processar sua mensagem agora. " +
	"Tente novamente em instantes."

// Message is one normalized inbound chat message. TenantID is resolved by
// the transport layer before it reaches the orchestrator.
type Message struct {
	TenantID         int64
	Channel          string
	RecipientAddress string
	Text             string
	PayloadID        string
	MessageAt        time.Time
}

// Outcome reports what one message produced, for the transport response
// and for tests. Reply is the text attempted, whether or not the gateway
// accepted it.
type Outcome struct {
	ConversationID  int64
	State           conversationdomain.State
	Reply           string
	ReplySent       bool
	NewConversation bool
	IsExcess        bool
	AppointmentID   int64
}

type OrchestratorParam struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Conversations conversationdomain.Service
	Engine        *flow.Engine
	Billing       billingdomain.Tracker
	Gateway       session.Gateway
	Appointments  appointmentdomain.Service
}

type Orchestrator struct {
	log           *zap.Logger
	clock         clock.Clock
	conversations conversationdomain.Service
	engine        *flow.Engine
	billing       billingdomain.Tracker
	gateway       session.Gateway
	appointments  appointmentdomain.Service

	senders keyedMutex
}

func NewOrchestrator(p OrchestratorParam) *Orchestrator {
	return &Orchestrator{
		log:           p.Log.Named("inbound.orchestrator"),
		clock:         p.Clock,
		conversations: p.Conversations,
		engine:        p.Engine,
		billing:       p.Billing,
		gateway:       p.Gateway,
		appointments:  p.Appointments,
	}
}

// Handle processes one message to completion. Messages for the same
// (tenant, recipient) pair run in arrival order; different identities run
// fully parallel. Billing and flow failures degrade to logs — the only
// error returned is a conversation store failure, without which there is
// nothing to transition.
func (o *Orchestrator) Handle(ctx context.Context, msg Message) (*Outcome, error) {
	if msg.TenantID == 0 {
		return nil, fmt.Errorf("inbound: missing tenant")
	}
	if msg.RecipientAddress == "" {
		return nil, conversationdomain.ErrInvalidRecipient
	}
	channel := msg.Channel
	if channel == "" {
		channel = defaultChannel
	}
	messageAt := msg.MessageAt
	if messageAt.IsZero() {
		messageAt = o.clock.Now()
	}

	unlock := o.senders.lock(strconv.FormatInt(msg.TenantID, 10) + ":" + channel + ":" + msg.RecipientAddress)
	defer unlock()

	log := ctxlogger.WithContext(ctx, o.log).With(
		zap.Int64("tenant_id", msg.TenantID),
		zap.String("recipient", msg.RecipientAddress),
	)

	record, err := o.conversations.GetOrCreate(ctx, msg.TenantID, channel, msg.RecipientAddress)
	if err != nil {
		return nil, fmt.Errorf("inbound: load conversation: %w", err)
	}

	billing := o.billing.ProcessMessageBilling(ctx, billingdomain.MessageBillingRequest{
		TenantID:         msg.TenantID,
		ConversationID:   int64(record.ID),
		RecipientAddress: msg.RecipientAddress,
		LastMessageAt:    record.LastMessageAt,
	})

	decision, err := o.engine.Decide(ctx, flow.Input{
		TenantID:  msg.TenantID,
		State:     record.State,
		Context:   record.Context,
		Text:      msg.Text,
		PayloadID: msg.PayloadID,
		MessageAt: messageAt,
	})
	if err != nil {
		// Degrade: keep the state, still answer the client.
		log.Error("flow decision failed", zap.Error(err))
		decision = flow.Decision{
			NextState: record.State,
			Reply:     replyUnavailable,
			HasReply:  true,
		}
	}

	persisted, err := o.conversations.ApplyDecision(ctx, record, conversationdomain.DecisionUpdate{
		NextState:       decision.NextState,
		Patch:           decision.Patch,
		ClearSelections: decision.ClearSelections,
		HandedOff:       decision.HandedOff,
		MessageAt:       messageAt,
	})
	if err != nil {
		// The reply attempt is still owed to the client.
		log.Error("conversation persist failed", zap.Error(err))
		persisted = record
	}

	outcome := &Outcome{
		ConversationID:  int64(persisted.ID),
		State:           persisted.State,
		Reply:           decision.Reply,
		NewConversation: billing.NewConversation,
		IsExcess:        billing.IsExcess,
	}

	if decision.HasReply {
		if err := o.gateway.SendText(ctx, msg.TenantID, msg.RecipientAddress, decision.Reply); err != nil {
			log.Warn("reply delivery failed", zap.Error(err))
		} else {
			outcome.ReplySent = true
		}
	}

	if decision.Booking != nil {
		outcome.AppointmentID = o.finalizeBooking(ctx, log, persisted, msg, decision.Booking)
	}

	cloudmetrics.RecordMessageProcessed(strconv.FormatInt(msg.TenantID, 10))
	return outcome, nil
}

// finalizeBooking creates the appointment behind a confirmed flow and pins
// its id onto the conversation context. The confirmation notification is
// enqueued by the appointment service.
func (o *Orchestrator) finalizeBooking(ctx context.Context, log *zap.Logger, record *conversationdomain.ConversationRecord, msg Message, booking *flow.BookingRequest) int64 {
	appt, err := o.appointments.Create(ctx, appointmentdomain.CreateRequest{
		TenantID:         msg.TenantID,
		ConversationID:   int64(record.ID),
		ServiceID:        booking.ServiceID,
		ServiceName:      booking.ServiceName,
		ClientName:       booking.ClientName,
		RecipientAddress: msg.RecipientAddress,
		Date:             booking.Date,
		Time:             booking.Time,
	})
	if err != nil {
		log.Error("booking finalization failed", zap.Error(err))
		return 0
	}

	if _, err := o.conversations.ApplyDecision(ctx, record, conversationdomain.DecisionUpdate{
		NextState: record.State,
		Patch:     map[string]any{conversationdomain.CtxAppointmentID: appt.ID.String()},
		MessageAt: msg.MessageAt,
	}); err != nil {
		log.Warn("appointment id not pinned to conversation", zap.Error(err))
	}
	return int64(appt.ID)
}
