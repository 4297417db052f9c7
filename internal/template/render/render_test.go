package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	content := "Olá {{clientName}}! {{serviceName}} em {{date}} às {{time}}."
	out := Render(content, map[string]string{
		"clientName":  "Maria",
		"serviceName": "Corte",
		"date":        "28/08/2026",
		"time":        "14:30",
	})
	assert.Equal(t, "Olá Maria! Corte em 28/08/2026 às 14:30.", out)
}

func TestRenderLeavesUnresolvedVerbatim(t *testing.T) {
	out := Render("Oi {{clientName}}, de {{tenantDisplayName}}", map[string]string{
		"clientName": "João",
	})
	assert.Equal(t, "Oi João, de {{tenantDisplayName}}", out)
}

func TestRenderTolerantSpacing(t *testing.T) {
	out := Render("Oi {{ clientName }}!", map[string]string{"clientName": "Ana"})
	assert.Equal(t, "Oi Ana!", out)
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("{{a}} {{b}} {{a}}")
	assert.Equal(t, []string{"a", "b"}, names)
}
