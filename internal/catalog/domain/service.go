package domain

import (
	"context"
	"errors"
)

type Service interface {
	// ListBookable returns the tenant's active, bookable services ordered
	// by sort key. This is the menu shown by the conversation flow.
	ListBookable(ctx context.Context, tenantID int64) ([]ServiceOffering, error)
	Get(ctx context.Context, tenantID, serviceID int64) (*ServiceOffering, error)
}

var ErrServiceNotFound = errors.New("service_not_found")
