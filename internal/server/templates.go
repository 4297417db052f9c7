package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	templaterender "github.com/smallbiznis/zapflow/internal/template/render"
)

func (s *Server) ListTemplates(c *gin.Context) {
	tenant := tenantFrom(c)

	rows, err := s.templateSvc.List(c.Request.Context(), int64(tenant.ID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"key":       row.Key,
			"content":   row.Content,
			"enabled":   row.Enabled,
			"variables": templaterender.Placeholders(row.Content),
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

type updateTemplateRequest struct {
	Content *string `json:"content"`
	Enabled *bool   `json:"enabled"`
}

func (s *Server) UpdateTemplate(c *gin.Context) {
	tenant := tenantFrom(c)

	key := strings.TrimSpace(c.Param("key"))
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	row, err := s.templateSvc.Update(c.Request.Context(), int64(tenant.ID), key, templatedomain.UpdateRequest{
		Content: req.Content,
		Enabled: req.Enabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":     row.Key,
		"content": row.Content,
		"enabled": row.Enabled,
	})
}
