package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Server) GetTenant(c *gin.Context) {
	tenant := tenantFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"id":           tenant.ID.String(),
		"slug":         tenant.Slug,
		"display_name": tenant.DisplayName,
		"timezone":     tenant.Timezone,
		"plan_id":      tenant.PlanID.String(),
		"active":       tenant.Active,
	})
}

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.tenantSvc.ListPlans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		out = append(out, gin.H{
			"id":                         plan.ID.String(),
			"code":                       plan.Code,
			"name":                       plan.Name,
			"monthly_conversation_limit": plan.MonthlyConversationLimit,
			"price_cents":                plan.PriceCents,
			"active":                     plan.Active,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

func (s *Server) ListServices(c *gin.Context) {
	tenant := tenantFrom(c)

	offerings, err := s.catalogSvc.ListBookable(c.Request.Context(), int64(tenant.ID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(offerings))
	for _, offering := range offerings {
		out = append(out, gin.H{
			"id":               offering.ID.String(),
			"name":             offering.Name,
			"description":      offering.Description,
			"duration_minutes": offering.DurationMinutes,
			"price_cents":      offering.PriceCents,
			"sort_order":       offering.SortOrder,
		})
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}
