package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// EscalationResult counts what one sweep did.
type EscalationResult struct {
	Checked   int
	Escalated int
	Failed    int
}

// EscalatePriorities raises the priority of open tickets that have waited
// too long at their current level: baja to media, then media to alta. Each
// candidate is re-checked under the row lock, so a concurrent staff update
// wins over the sweep.
func (s *TicketService) EscalatePriorities(ctx context.Context) (EscalationResult, error) {
	var result EscalationResult
	now := s.clock.Now()

	rules := []struct {
		from  domain.TicketPriority
		after time.Duration
	}{
		{domain.TicketPriorityLow, hours(s.escalation.LowToMediumHours, 24)},
		{domain.TicketPriorityMedium, hours(s.escalation.MediumToHighHours, 48)},
	}

	for _, rule := range rules {
		if err := s.escalateRule(ctx, now.Add(-rule.after), rule.from, rule.after, &result); err != nil {
			return result, err
		}
	}

	if result.Escalated > 0 || result.Failed > 0 {
		s.logger.Info("priority escalation sweep",
			zap.Int("checked", result.Checked),
			zap.Int("escalated", result.Escalated),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

// escalateRule walks every candidate for one rule, most overdue first.
// Escalated tickets leave the candidate set, so only the ones left behind
// advance the offset.
func (s *TicketService) escalateRule(ctx context.Context, cutoff time.Time, from domain.TicketPriority, after time.Duration, result *EscalationResult) error {
	offset := 0
	for {
		page, err := s.tickets.List(ctx, repository.TicketFilter{
			Statuses:              []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
			Priorities:            []domain.TicketPriority{from},
			PriorityChangedBefore: &cutoff,
			OldestPriorityFirst:   true,
			Limit:                 s.escalationBatch,
			Offset:                offset,
		})
		if err != nil {
			return err
		}

		for _, candidate := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Checked++
			escalated, err := s.escalateOne(ctx, candidate.ID, from, after)
			if err != nil {
				result.Failed++
				s.logger.Warn("escalation failed", zap.String("ticket_id", candidate.ID), zap.Error(err))
			}
			if !escalated {
				offset++
				continue
			}
			result.Escalated++
		}
		if len(page) < s.escalationBatch {
			return nil
		}
	}
}

func (s *TicketService) escalateOne(ctx context.Context, ticketID string, from domain.TicketPriority, after time.Duration) (bool, error) {
	ticket, entries, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) ([]domain.HistoryEntry, error) {
		now := s.clock.Now()
		if t.Priority != from || t.Status == domain.TicketStatusClosed || now.Sub(t.PriorityChangedAt) < after {
			return nil, nil
		}
		next, ok := nextEscalation(t.Priority)
		if !ok {
			return nil, nil
		}
		entry := domain.HistoryEntry{
			ActorName:   domain.SystemActorName,
			Action:      domain.HistoryActionPriorityEscalated,
			Description: fmt.Sprintf("Prioridad escalada automáticamente de %s a %s", t.Priority, next),
			OldValue:    strPtr(string(t.Priority)),
			NewValue:    strPtr(string(next)),
			CreatedAt:   now,
		}
		t.Priority = next
		t.PriorityChangedAt = now
		t.UpdatedAt = now
		return []domain.HistoryEntry{entry}, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, entry := range entries {
		s.publishEvent(ctx, historyEvent(ticket.ID, systemActor(), entry))
	}
	return len(entries) > 0, nil
}

func hours(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Hour
}
