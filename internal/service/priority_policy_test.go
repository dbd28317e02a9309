package service

import (
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestDeterminePriority(t *testing.T) {
	medium := domain.TicketPriorityMedium
	high := domain.TicketPriorityHigh

	tests := []struct {
		name        string
		def         *domain.TicketPriority
		title, desc string
		want        domain.TicketPriority
	}{
		{"no default no keywords", nil, "Cambio de toner", "La impresora pide toner", domain.TicketPriorityLow},
		{"category default kept", &medium, "Consulta", "Necesito ayuda", domain.TicketPriorityMedium},
		{"medium keyword raises low", nil, "Equipo lento", "Tarda en abrir", domain.TicketPriorityMedium},
		{"high keyword in description", nil, "Problema", "El servidor no responde", domain.TicketPriorityHigh},
		{"high keyword case insensitive", nil, "URGENTE", "ayuda", domain.TicketPriorityHigh},
		{"medium keyword does not lower high default", &high, "Error menor", "", domain.TicketPriorityHigh},
		{"accented keyword", nil, "Sistema caído", "", domain.TicketPriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeterminePriority(tt.def, tt.title, tt.desc); got != tt.want {
				t.Errorf("DeterminePriority() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextEscalation(t *testing.T) {
	if p, ok := nextEscalation(domain.TicketPriorityLow); !ok || p != domain.TicketPriorityMedium {
		t.Errorf("baja -> %q,%v", p, ok)
	}
	if p, ok := nextEscalation(domain.TicketPriorityMedium); !ok || p != domain.TicketPriorityHigh {
		t.Errorf("media -> %q,%v", p, ok)
	}
	if _, ok := nextEscalation(domain.TicketPriorityHigh); ok {
		t.Error("alta should not escalate")
	}
}
