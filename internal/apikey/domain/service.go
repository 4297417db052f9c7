package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	ScopeWebhookIngest = "webhook:ingest"
)

type Service interface {
	List(ctx context.Context, tenantID int64) ([]Response, error)
	Create(ctx context.Context, tenantID int64, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, tenantID int64, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, tenantID int64, keyID string) error
	// Verify authenticates a raw bearer key against the tenant's active
	// credentials and touches last_used_at on success.
	Verify(ctx context.Context, tenantID int64, rawKey string) (*APIKey, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByKeyID(ctx context.Context, db *gorm.DB, tenantID int64, keyID string) (*APIKey, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, tenantID int64, keyHash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, tenantID int64) ([]APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, keyID string, usedAt time.Time) error
}

type CreateRequest struct {
	Name string `json:"name"`
}

type Response struct {
	KeyID            string     `json:"key_id"`
	Name             string     `json:"name"`
	Scope            string     `json:"scope"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RotatedFromKeyID *string    `json:"rotated_from_key_id"`
}

type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidKeyID  = errors.New("invalid_key_id")
	ErrNotFound      = errors.New("not_found")
	ErrUnauthorized  = errors.New("unauthorized")
)
