package appointment

import (
	"fmt"
	"strings"
)

// Patient-facing Spanish templates. Every outbound line in the booking
// flow comes from here so the flow stays deterministic.

const (
	msgAskService = "¡Con gusto te ayudo a agendar tu cita! 😊 ¿Qué tratamiento te interesa? Ofrecemos limpieza facial, Botox, rellenos, depilación láser, peeling, plasma y consultas de valoración."

	msgServiceRetry = "Disculpa, no identifiqué el tratamiento. ¿Podrías decirme cuál te interesa? Por ejemplo: limpieza facial, Botox o depilación láser."

	msgDateRetry = "No logré entender la fecha 😅 ¿Podrías indicarla de otra forma? Por ejemplo: \"mañana\", \"el viernes\" o \"15/03\"."

	msgTimeRetry = "No logré entender la hora. ¿A qué hora te gustaría? Por ejemplo: \"10:00\", \"3 pm\" o \"a las 4 de la tarde\". Atendemos de 9:00 a 19:00."

	msgConfirmRetry = "¿Me confirmas la cita? Responde \"sí\" para agendarla o \"no\" para cancelar."

	msgCancelled = "Entendido, he cancelado la solicitud. Si cambias de opinión, escríbeme cuando quieras 😊"

	msgCalendarDown = "Estoy teniendo problemas para consultar la agenda en este momento 🙏 ¿Podrías repetir la hora en un momento?"
)

func msgAskDate(service string) string {
	return fmt.Sprintf("¡Perfecto, %s! 📅 ¿Para qué fecha te gustaría la cita? Atendemos de lunes a sábado.", service)
}

func msgAskTime(date string) string {
	return fmt.Sprintf("Muy bien, el %s. ⏰ ¿A qué hora te viene bien? Nuestro horario es de 9:00 a 19:00.", date)
}

func msgDateInvalid(reason string) string {
	switch reason {
	case "past":
		return "Esa fecha ya pasó 😅 ¿Qué otro día te gustaría venir?"
	case "sunday":
		return "Los domingos no atendemos 🙏 ¿Te gustaría otro día? Abrimos de lunes a sábado."
	default:
		return msgDateRetry
	}
}

func msgSlotTaken(timeOfDay string, alternatives []string) string {
	if len(alternatives) == 0 {
		return fmt.Sprintf("Lo siento, las %s ya está ocupado ese día 😔 ¿Te gustaría otra hora u otro día?", timeOfDay)
	}
	return fmt.Sprintf("Lo siento, las %s ya está ocupado 😔 Tengo disponibles: %s. ¿Alguna te sirve?",
		timeOfDay, strings.Join(alternatives, ", "))
}

func msgCreateConflict(alternatives []string) string {
	if len(alternatives) == 0 {
		return "¡Ay! Ese horario se acaba de ocupar 😔 ¿Te gustaría elegir otra hora?"
	}
	return fmt.Sprintf("¡Ay! Ese horario se acaba de ocupar 😔 Aún tengo: %s. ¿Cuál prefieres?",
		strings.Join(alternatives, ", "))
}

func msgConfirm(slots Slots) string {
	return fmt.Sprintf("¡Listo! Te confirmo los datos 📋\n• Tratamiento: %s\n• Fecha: %s\n• Hora: %s\n\n¿Confirmamos la cita? (sí/no)",
		slots.Service, slots.Date, slots.Time)
}

func msgBooked(slots Slots) string {
	return fmt.Sprintf("✅ ¡Tu cita quedó agendada! %s el %s a las %s. Te esperamos en BIOSKIN. Si necesitas cambiarla, escríbenos con gusto.",
		slots.Service, slots.Date, slots.Time)
}

func msgTransferred(slots Slots) string {
	return fmt.Sprintf("Veo que no hemos logrado completar la reserva por aquí 🙏 Una persona de nuestro equipo te contactará en breve para ayudarte. %s", summaryLine(slots))
}

func summaryLine(slots Slots) string {
	var parts []string
	if slots.Service != "" {
		parts = append(parts, "tratamiento: "+slots.Service)
	}
	if slots.Date != "" {
		parts = append(parts, "fecha: "+slots.Date)
	}
	if slots.Time != "" {
		parts = append(parts, "hora: "+slots.Time)
	}
	if len(parts) == 0 {
		return "Aún no habíamos registrado datos de la cita."
	}
	return "Datos registrados: " + strings.Join(parts, ", ") + "."
}
