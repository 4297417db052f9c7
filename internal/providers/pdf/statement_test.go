package pdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
)

func TestRenderStatement(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	r := NewStatementRenderer(clk)

	tenant := &tenantdomain.Tenant{
		Slug:        "salon-bela",
		DisplayName: "Salão Bela",
		Timezone:    "America/Sao_Paulo",
	}
	history := []billingdomain.UsageSummary{
		{YearMonth: "2026-08", Used: 34, Limit: 40, Excess: 0, Percentage: 85},
		{YearMonth: "2026-07", Used: 47, Limit: 40, Excess: 7, Percentage: 117.5},
	}

	doc, err := r.Render(tenant, history)
	require.NoError(t, err)
	require.NotEmpty(t, doc)
	require.Equal(t, "%PDF", string(doc[:4]))
}

func TestRenderStatementRequiresTenant(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC))
	r := NewStatementRenderer(clk)

	_, err := r.Render(nil, nil)
	require.Error(t, err)
}
