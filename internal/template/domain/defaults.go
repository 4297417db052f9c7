package domain

// Template keys produced by the appointment lifecycle and the flow.
const (
	KeyBookingConfirmed     = "booking_confirmed"
	KeyAppointmentReminder  = "appointment_reminder"
	KeyAppointmentCancelled = "appointment_cancelled"
)

// Defaults is the built-in content table used to self-heal missing tenant
// rows: the first job referencing an absent key provisions it from here.
var Defaults = map[string]string{
	KeyBookingConfirmed: "Olá {{clientName}}! Seu agendamento de {{serviceName}} foi confirmado " +
		"para {{date}} às {{time}}. Até lá! — {{tenantDisplayName}}",
	KeyAppointmentReminder: "Oi {{clientName}}! Lembrete: você tem {{serviceName}} amanhã, " +
		"{{date}} às {{time}}. Se precisar remarcar, é só responder aqui. — {{tenantDisplayName}}",
	KeyAppointmentCancelled: "Olá {{clientName}}, seu agendamento de {{serviceName}} em {{date}} " +
		"às {{time}} foi cancelado. Responda aqui para remarcar. — {{tenantDisplayName}}",
}

// DefaultContent returns the built-in content for key.
func DefaultContent(key string) (string, bool) {
	content, ok := Defaults[key]
	return content, ok
}
