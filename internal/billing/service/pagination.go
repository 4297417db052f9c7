package service

import (
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	"github.com/smallbiznis/zapflow/pkg/db/pagination"
)

func paginateEvents(rows []*billingdomain.BillingWindowEvent, pageSize int32) (*pagination.PageInfo, []*billingdomain.BillingWindowEvent) {
	return pagination.BuildCursorPageInfo(rows, pageSize, func(ev *billingdomain.BillingWindowEvent) string {
		return ev.ID.String()
	})
}
