package flow

import (
	"fmt"
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
)

// Outbound copy is a deterministic function of state + context so the flow
// can be covered by golden-output tests.

const (
	msgMainMenu = "Olá! 👋 Sou o assistente virtual.\n" +
		"Digite *agendar* para marcar um horário.\n" +
		"Digite *atendente* para falar com uma pessoa."

	msgEmptyCatalog = "Desculpe, não temos serviços disponíveis para agendamento no momento. " +
		"Digite *atendente* para falar com uma pessoa."

	msgHandoffAck = "Certo! Um atendente vai continuar a conversa por aqui. " +
		"Digite *menu* quando quiser voltar ao atendimento automático."

	msgEscalation = "Não consegui entender. 😕 Vou te transferir para um atendente. " +
		"Digite *menu* quando quiser voltar ao atendimento automático."

	msgAborted = "Tudo bem, agendamento cancelado.\n\n" + msgMainMenu
)

var weekdaysPtBR = [...]string{"domingo", "segunda", "terça", "quarta", "quinta", "sexta", "sábado"}

func renderServiceList(offerings []catalogdomain.ServiceOffering) string {
	var b strings.Builder
	b.WriteString("Qual serviço você gostaria de agendar?\n")
	for i, svc := range offerings {
		fmt.Fprintf(&b, "\n%d. %s", i+1, svc.Name)
		if svc.PriceCents > 0 {
			fmt.Fprintf(&b, " — R$ %d,%02d", svc.PriceCents/100, svc.PriceCents%100)
		}
	}
	b.WriteString("\n\nResponda com o número ou o nome do serviço.")
	return b.String()
}

func renderDateList(serviceName string, dates []time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ótimo, *%s*! Para qual dia?\n", serviceName)
	for i, d := range dates {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, d.Format("02/01"), weekdaysPtBR[int(d.Weekday())])
	}
	b.WriteString("\n\nResponda com a data (ex: 25/12), *hoje* ou *amanhã*.")
	return b.String()
}

func renderTimeList(date time.Time, slots []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dia %s. Qual horário?\n", date.Format("02/01/2006"))
	for i, slot := range slots {
		if i%4 == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(slot)
	}
	b.WriteString("\n\nResponda com o horário (ex: 14:30).")
	return b.String()
}

func renderConfirmation(serviceName, date, timeOfDay string) string {
	return fmt.Sprintf("Confirmando seu agendamento:\n\n"+
		"📋 Serviço: %s\n📅 Data: %s\n🕐 Horário: %s\n\n"+
		"Está correto? Responda *sim* para confirmar ou *não* para recomeçar.",
		serviceName, formatDateBR(date), timeOfDay)
}

func renderBooked(serviceName, date, timeOfDay string) string {
	return fmt.Sprintf("✅ Agendamento confirmado!\n\n"+
		"📋 %s\n📅 %s às %s\n\n"+
		"Até lá! Envie qualquer mensagem para voltar ao menu.",
		serviceName, formatDateBR(date), timeOfDay)
}

func renderRetry(prompt string, remaining int) string {
	if remaining == 1 {
		return prompt + "\n\n(Se eu não entender de novo, vou te passar para um atendente.)"
	}
	return prompt
}

const (
	retryService = "Não encontrei esse serviço. Responda com o número ou o nome de um serviço da lista."
	retryDate    = "Não entendi a data. Responda no formato DD/MM (ex: 25/12), *hoje* ou *amanhã*."
	retryTime    = "Não entendi o horário. Responda no formato HH:MM (ex: 14:30)."
)

func formatDateBR(iso string) string {
	d, err := time.Parse(dateLayout, iso)
	if err != nil {
		return iso
	}
	return d.Format("02/01/2006")
}
