package domain

import "time"

// Comment is one message in a ticket's discussion. Append-only.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	UserName  string
	Body      string
	CreatedAt time.Time
	Sequence  int64
}
