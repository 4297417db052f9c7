package domain

import (
	"context"
	"errors"
)

type UpdateRequest struct {
	Content *string `json:"content"`
	Enabled *bool   `json:"enabled"`
}

type Service interface {
	// Resolve returns the tenant's enabled template for key, provisioning it
	// from the built-in defaults when no row exists yet. A row that exists
	// but is disabled returns ErrTemplateDisabled: a business outcome, not a
	// transient failure.
	Resolve(ctx context.Context, tenantID int64, key string) (*MessageTemplate, error)
	List(ctx context.Context, tenantID int64) ([]MessageTemplate, error)
	Update(ctx context.Context, tenantID int64, key string, req UpdateRequest) (*MessageTemplate, error)
}

var (
	ErrTemplateDisabled = errors.New("template_disabled")
	ErrUnknownKey       = errors.New("unknown_template_key")
	ErrEmptyContent     = errors.New("empty_template_content")
)
