package domain

import "time"

// HistoryAction captures what a history entry records.
type HistoryAction string

const (
	HistoryActionCreated            HistoryAction = "created"
	HistoryActionStatusChanged      HistoryAction = "status_changed"
	HistoryActionPriorityChanged    HistoryAction = "priority_changed"
	HistoryActionTechnicianAssigned HistoryAction = "technician_assigned"
	HistoryActionCommented          HistoryAction = "commented"
	HistoryActionPriorityEscalated  HistoryAction = "priority_escalated"
)

// HistoryEntry is an immutable audit trail entry. ActorID is nil for
// changes made by the system itself.
type HistoryEntry struct {
	ID          string
	TicketID    string
	ActorID     *string
	ActorName   string
	Action      HistoryAction
	Description string
	OldValue    *string
	NewValue    *string
	CreatedAt   time.Time
	Sequence    int64
}

// SystemActorName is shown for entries with no human actor.
const SystemActorName = "Sistema"
