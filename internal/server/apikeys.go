package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/zapflow/internal/apikey/domain"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
)

func notificationStatus(raw string) notificationdomain.JobStatus {
	switch notificationdomain.JobStatus(raw) {
	case notificationdomain.JobStatusWaiting,
		notificationdomain.JobStatusActive,
		notificationdomain.JobStatusCompleted,
		notificationdomain.JobStatusFailed:
		return notificationdomain.JobStatus(raw)
	default:
		return notificationdomain.JobStatusWaiting
	}
}

func (s *Server) ListAPIKeys(c *gin.Context) {
	tenant := tenantFrom(c)

	keys, err := s.apiKeySvc.List(c.Request.Context(), int64(tenant.ID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

func (s *Server) CreateAPIKey(c *gin.Context) {
	tenant := tenantFrom(c)

	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	secret, err := s.apiKeySvc.Create(c.Request.Context(), int64(tenant.ID), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, secret)
}

func (s *Server) RotateAPIKey(c *gin.Context) {
	tenant := tenantFrom(c)

	secret, err := s.apiKeySvc.Rotate(c.Request.Context(), int64(tenant.ID), c.Param("keyId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, secret)
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	tenant := tenantFrom(c)

	if err := s.apiKeySvc.Revoke(c.Request.Context(), int64(tenant.ID), c.Param("keyId")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
