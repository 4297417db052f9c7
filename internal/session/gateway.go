// Package session talks to the chat session bridge: the external service
// that owns transport-level session lifecycle. The core only asks two
// things of it: is the tenant's session up, and deliver one text message.
package session

import (
	"context"
	"errors"
)

// Gateway is the delivery capability injected into the queue worker and
// the inbound orchestrator. The bridge serializes sends per tenant session;
// callers do not.
type Gateway interface {
	IsConnected(ctx context.Context, tenantID int64) (bool, error)
	SendText(ctx context.Context, tenantID int64, recipientAddress, text string) error
}

var (
	ErrSessionNotConnected = errors.New("session_not_connected")
	ErrSendFailed          = errors.New("send_failed")
)
