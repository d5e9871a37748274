package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// WithTenant scopes the current transaction's row-level security policy to a
// single tenant. Must run inside an open transaction: SET LOCAL outside one
// is a silent no-op in Postgres.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	return tx.Exec(
		"SET LOCAL app.current_tenant_id = ?",
		fmt.Sprintf("%d", tenantID),
	).Error
}
