package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/zapflow/internal/inbound"
)

// webhookMessageRequest is the session-bridge delivery payload. Payload is
// the structured interactive selection (button/list id) when present.
type webhookMessageRequest struct {
	From      string `json:"from" binding:"required"`
	Text      string `json:"text"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

type webhookMessageResponse struct {
	ConversationID  string `json:"conversation_id"`
	State           string `json:"state"`
	Reply           string `json:"reply,omitempty"`
	ReplySent       bool   `json:"reply_sent"`
	NewConversation bool   `json:"new_conversation"`
}

// IngestWebhookMessage normalizes one inbound chat message and hands it to
// the orchestrator.
func (s *Server) IngestWebhookMessage(c *gin.Context) {
	tenant := tenantFrom(c)

	var req webhookMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.From) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var messageAt time.Time
	if req.Timestamp > 0 {
		messageAt = time.Unix(req.Timestamp, 0).UTC()
	}

	outcome, err := s.orchestrator.Handle(c.Request.Context(), inbound.Message{
		TenantID:         int64(tenant.ID),
		RecipientAddress: strings.TrimSpace(req.From),
		Text:             req.Text,
		PayloadID:        strings.TrimSpace(req.Payload),
		MessageAt:        messageAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookMessageResponse{
		ConversationID:  formatID(outcome.ConversationID),
		State:           string(outcome.State),
		Reply:           outcome.Reply,
		ReplySent:       outcome.ReplySent,
		NewConversation: outcome.NewConversation,
	})
}
