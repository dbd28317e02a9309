package service

import (
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var (
	highPriorityKeywords = []string{
		"urgente", "caído", "caido", "no funciona", "no enciende", "servidor",
		"sin acceso", "bloqueado", "outage", "down",
	}
	mediumPriorityKeywords = []string{
		"lento", "error", "falla", "fallo", "intermitente", "slow",
	}
)

// DeterminePriority starts from the category default (baja when unset) and
// lets keywords in the title or description raise it. It never lowers the
// category default.
func DeterminePriority(categoryDefault *domain.TicketPriority, title, description string) domain.TicketPriority {
	priority := domain.TicketPriorityLow
	if categoryDefault != nil && categoryDefault.Rank() > priority.Rank() {
		priority = *categoryDefault
	}

	text := strings.ToLower(title + " " + description)
	switch {
	case containsAny(text, highPriorityKeywords):
		return domain.TicketPriorityHigh
	case containsAny(text, mediumPriorityKeywords) && priority.Rank() < domain.TicketPriorityMedium.Rank():
		return domain.TicketPriorityMedium
	}
	return priority
}

// nextEscalation returns the priority a ticket escalates to, if any.
func nextEscalation(p domain.TicketPriority) (domain.TicketPriority, bool) {
	switch p {
	case domain.TicketPriorityLow:
		return domain.TicketPriorityMedium, true
	case domain.TicketPriorityMedium:
		return domain.TicketPriorityHigh, true
	default:
		return "", false
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
