package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// Escalator is the slice of TicketService the escalation worker drives.
type Escalator interface {
	EscalatePriorities(ctx context.Context) (service.EscalationResult, error)
}

// StartEscalationWorker runs one sweep immediately and then every interval
// until ctx is cancelled. The returned channel closes when the loop exits.
func StartEscalationWorker(ctx context.Context, escalator Escalator, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweep := func() {
			result, err := escalator.EscalatePriorities(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("priority escalation sweep failed", zap.Error(err))
				}
				return
			}
			metrics.Inc("escalation.sweeps", 1)
			metrics.Inc("escalation.escalated", int64(result.Escalated))
		}

		sweep()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
	return done
}
