package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "abierto"
	TicketStatusInProgress TicketStatus = "en_proceso"
	TicketStatusClosed     TicketStatus = "cerrado"
)

var statusAliases = map[string]TicketStatus{
	"abierto":     TicketStatusOpen,
	"open":        TicketStatusOpen,
	"en_proceso":  TicketStatusInProgress,
	"in_progress": TicketStatusInProgress,
	"cerrado":     TicketStatusClosed,
	"closed":      TicketStatusClosed,
}

// ParseTicketStatus accepts the wire value or its English alias.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "baja"
	TicketPriorityMedium TicketPriority = "media"
	TicketPriorityHigh   TicketPriority = "alta"
)

var priorityAliases = map[string]TicketPriority{
	"baja":   TicketPriorityLow,
	"low":    TicketPriorityLow,
	"media":  TicketPriorityMedium,
	"medium": TicketPriorityMedium,
	"alta":   TicketPriorityHigh,
	"high":   TicketPriorityHigh,
}

// ParseTicketPriority accepts the wire value or its English alias.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	priority, ok := priorityAliases[strings.ToLower(strings.TrimSpace(raw))]
	return priority, ok
}

// Rank orders priorities from low (0) to high (2).
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityMedium:
		return 1
	case TicketPriorityHigh:
		return 2
	default:
		return 0
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                string
	RequesterID       string
	TechnicianID      *string
	CategoryID        string
	EquipmentID       *string
	Title             string
	Description       string
	Status            TicketStatus
	Priority          TicketPriority
	CreatedAt         time.Time
	UpdatedAt         time.Time
	AssignedAt        *time.Time
	ClosedAt          *time.Time
	PriorityChangedAt time.Time
	Version           int

	// Display fields joined at read time.
	RequesterName  string
	TechnicianName *string
	CategoryName   string
}

// Attachment is an image uploaded with a ticket. Immutable once stored.
type Attachment struct {
	ID          string
	TicketID    string
	Filename    string
	ContentType string
	SizeBytes   int64
	Checksum    string
	Data        []byte
	UploadedAt  time.Time
}
