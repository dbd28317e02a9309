package domain

import "time"

// Category classifies tickets. DefaultPriority seeds the priority policy.
type Category struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DefaultPriority *TicketPriority `json:"default_priority,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Equipment is an asset a ticket can refer to.
type Equipment struct {
	ID           string
	Name         string
	Type         string
	Brand        *string
	Model        *string
	SerialNumber *string
	OwnerID      *string
	DepartmentID *string
	CreatedAt    time.Time
}

// Department groups users and equipment. Read-only over the API.
type Department struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}
