// Package migration applies the schema on startup so self-hosted
// deployments work out of the box.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	apikeydomain "github.com/smallbiznis/zapflow/internal/apikey/domain"
	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	conversationdomain "github.com/smallbiznis/zapflow/internal/conversation/domain"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
)

//go:embed sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the versioned postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the non-postgres drivers (sqlite dev mode, mysql),
// where the versioned SQL does not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&tenantdomain.Plan{},
		&tenantdomain.Tenant{},
		&catalogdomain.ServiceOffering{},
		&conversationdomain.ConversationRecord{},
		&billingdomain.BillingWindowEvent{},
		&billingdomain.MonthlyUsageCounter{},
		&notificationdomain.NotificationJob{},
		&appointmentdomain.Appointment{},
		&templatedomain.MessageTemplate{},
		&apikeydomain.APIKey{},
	)
}
