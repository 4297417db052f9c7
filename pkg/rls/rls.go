package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// WithTenant pins the current transaction to one tenant for row-level
// security policies. Postgres only; SET LOCAL is a no-op outside a
// transaction, so callers must already be inside one.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SET LOCAL app.current_tenant_id = ?",
		fmt.Sprintf("%d", tenantID),
	).Error
}
