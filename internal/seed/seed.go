// Package seed bootstraps the default plan catalog and, when enabled, a
// demo tenant so a fresh install is usable immediately.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	apikeydomain "github.com/smallbiznis/zapflow/internal/apikey/domain"
	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
)

const (
	demoTenantSlug   = "demo"
	demoTenantName   = "Demo Salon"
	demoWebhookKeyID = "demo-webhook"
	// DemoWebhookKey authenticates webhook calls against the demo tenant.
	// Development convenience only; rotate before exposing the instance.
	DemoWebhookKey = "zf_live_key_demo_0000000000000000"
)

type planSpec struct {
	Code                     string
	Name                     string
	MonthlyConversationLimit int
	PriceCents               int64
}

var defaultPlans = []planSpec{
	{Code: "starter", Name: "Starter", MonthlyConversationLimit: 40, PriceCents: 4900},
	{Code: "pro", Name: "Pro", MonthlyConversationLimit: 200, PriceCents: 14900},
	{Code: "unlimited", Name: "Unlimited", MonthlyConversationLimit: tenantdomain.QuotaUnlimited, PriceCents: 39900},
}

// EnsurePlans inserts any missing default plan rows. Existing rows are
// left untouched so operator edits survive restarts.
func EnsurePlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, spec := range defaultPlans {
			var existing tenantdomain.Plan
			err := tx.Where("code = ?", spec.Code).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			plan := tenantdomain.Plan{
				ID:                       node.Generate(),
				Code:                     spec.Code,
				Name:                     spec.Name,
				MonthlyConversationLimit: spec.MonthlyConversationLimit,
				PriceCents:               spec.PriceCents,
				Active:                   true,
			}
			if err := tx.Create(&plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureDemoTenant creates the demo tenant with a small service catalog
// and a webhook ingest key.
func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := ensureDemoTenantTx(tx, node)
		if err != nil {
			return err
		}
		if err := ensureDemoCatalogTx(tx, node, tenant.ID); err != nil {
			return err
		}
		return ensureDemoWebhookKeyTx(tx, node, tenant.ID)
	})
}

func ensureDemoTenantTx(tx *gorm.DB, node *snowflake.Node) (*tenantdomain.Tenant, error) {
	var tenant tenantdomain.Tenant
	err := tx.Where("slug = ?", demoTenantSlug).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var starter tenantdomain.Plan
	if err := tx.Where("code = ?", "starter").First(&starter).Error; err != nil {
		return nil, err
	}

	tenant = tenantdomain.Tenant{
		ID:          node.Generate(),
		Slug:        demoTenantSlug,
		DisplayName: demoTenantName,
		Timezone:    "America/Sao_Paulo",
		PlanID:      starter.ID,
		Active:      true,
	}
	if err := tx.Create(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func ensureDemoCatalogTx(tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	var count int64
	if err := tx.Model(&catalogdomain.ServiceOffering{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	offerings := []catalogdomain.ServiceOffering{
		{Name: "Corte de cabelo", DurationMinutes: 45, PriceCents: 5000, SortOrder: 1},
		{Name: "Manicure", DurationMinutes: 40, PriceCents: 3500, SortOrder: 2},
		{Name: "Escova", DurationMinutes: 30, PriceCents: 4000, SortOrder: 3},
	}
	for i := range offerings {
		offerings[i].ID = node.Generate()
		offerings[i].TenantID = tenantID
		offerings[i].Active = true
		offerings[i].Bookable = true
	}
	return tx.Create(&offerings).Error
}

func ensureDemoWebhookKeyTx(tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	var existing apikeydomain.APIKey
	err := tx.Where("tenant_id = ? AND key_id = ?", tenantID, demoWebhookKeyID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	key := apikeydomain.APIKey{
		ID:        node.Generate(),
		TenantID:  tenantID,
		KeyID:     demoWebhookKeyID,
		Name:      "Demo webhook",
		Scope:     apikeydomain.ScopeWebhookIngest,
		KeyHash:   apikeydomain.HashAPIKey(DemoWebhookKey),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.Create(&key).Error
}
