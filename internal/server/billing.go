package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
)

func (s *Server) GetCurrentUsage(c *gin.Context) {
	tenant := tenantFrom(c)

	usage, err := s.billingSvc.CurrentUsage(c.Request.Context(), int64(tenant.ID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) GetUsageHistory(c *gin.Context) {
	tenant := tenantFrom(c)

	months := 6
	if raw := strings.TrimSpace(c.Query("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		months = parsed
	}

	history, err := s.billingSvc.UsageHistory(c.Request.Context(), int64(tenant.ID), months)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) ListBillingEvents(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var pageSize int32
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		pageSize = int32(parsed)
	}

	resp, err := s.billingSvc.ListEvents(c.Request.Context(), billingdomain.ListEventsRequest{
		ConversationID: conversationID,
		PageToken:      c.Query("page_token"),
		PageSize:       pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetUsageStatement renders the tenant's monthly usage statement as PDF.
func (s *Server) GetUsageStatement(c *gin.Context) {
	tenant := tenantFrom(c)

	months := 6
	if raw := strings.TrimSpace(c.Query("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		months = parsed
	}

	history, err := s.billingSvc.UsageHistory(c.Request.Context(), int64(tenant.ID), months)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.statements.Render(tenant, history)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="usage-statement-`+tenant.Slug+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}
