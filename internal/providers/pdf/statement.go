package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
)

// StatementRenderer produces the monthly usage statement PDF served by the
// billing API.
type StatementRenderer struct {
	clock clock.Clock
}

func NewStatementRenderer(clk clock.Clock) *StatementRenderer {
	return &StatementRenderer{clock: clk}
}

// Render builds a statement covering the given usage history, newest month
// first as returned by the tracker.
func (r *StatementRenderer) Render(tenant *tenantdomain.Tenant, history []billingdomain.UsageSummary) ([]byte, error) {
	if tenant == nil {
		return nil, fmt.Errorf("nil tenant")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Usage statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New(tenant.DisplayName, props.Text{Style: fontstyle.Bold}),
			text.New("Tenant: "+tenant.Slug, props.Text{Top: 5, Size: 9}),
			text.New("Timezone: "+tenant.Timezone, props.Text{Top: 9, Size: 9}),
		),
		col.New(6).Add(
			text.New("Generated: "+r.clock.Now().UTC().Format("2006-01-02 15:04 MST"), props.Text{Size: 9, Align: align.Right}),
			text.New(fmt.Sprintf("Months covered: %d", len(history)), props.Text{Top: 4, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(3, "Month", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Conversations", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Plan limit", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Excess", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Utilization", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, month := range history {
		m.AddRow(8,
			text.NewCol(3, month.YearMonth, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", month.Used), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatLimit(month.Limit), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d", month.Excess), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, formatPercentage(month), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if len(history) == 0 {
		m.AddRow(10,
			text.NewCol(12, "No usage recorded for this tenant yet.", props.Text{Size: 9}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func formatLimit(limit int) string {
	if limit == tenantdomain.QuotaUnlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}

func formatPercentage(month billingdomain.UsageSummary) string {
	if month.Limit == tenantdomain.QuotaUnlimited {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", month.Percentage)
}
