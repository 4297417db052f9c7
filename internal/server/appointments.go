package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
)

func (s *Server) ListAppointments(c *gin.Context) {
	tenant := tenantFrom(c)

	status := appointmentdomain.Status(strings.TrimSpace(c.Query("status")))
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	rows, err := s.appointmentSvc.List(c.Request.Context(), int64(tenant.ID), status, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID.String(),
			"service_name": row.ServiceName,
			"client_name":  row.ClientName,
			"recipient":    row.RecipientAddress,
			"date":         row.Date,
			"time":         row.Time,
			"starts_at":    row.StartsAt,
			"status":       row.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"appointments": out})
}

func (s *Server) CancelAppointment(c *gin.Context) {
	tenant := tenantFrom(c)

	appointmentID, err := strconv.ParseInt(c.Param("appointmentId"), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	appt, err := s.appointmentSvc.Cancel(c.Request.Context(), int64(tenant.ID), appointmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           appt.ID.String(),
		"status":       appt.Status,
		"cancelled_at": appt.CancelledAt,
	})
}

func (s *Server) ListNotificationJobs(c *gin.Context) {
	tenant := tenantFrom(c)

	status := notificationStatus(c.Query("status"))
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	jobs, err := s.queue.ListByStatus(c.Request.Context(), int64(tenant.ID), status, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, gin.H{
			"id":              job.ID.String(),
			"recipient":       job.RecipientAddress,
			"template_key":    job.TemplateKey,
			"status":          job.Status,
			"attempt_count":   job.AttemptCount,
			"next_attempt_at": job.NextAttemptAt,
			"last_error":      job.LastError,
			"created_at":      job.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}
