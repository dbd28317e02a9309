package dto

import "time"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	CategoryID  string              `json:"category_id"`
	EquipmentID *string             `json:"equipment_id"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// AttachmentRequest is one uploaded image, base64 encoded.
type AttachmentRequest struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Status       *string `json:"status"`
	Priority     *string `json:"priority"`
	TechnicianID *string `json:"technician_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Comment string `json:"comment"`
}

// TicketResponse is the listing view of a ticket.
type TicketResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	UserName           string     `json:"user_name"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	CategoryID         string     `json:"category_id"`
	CategoryName       string     `json:"category_name"`
	EquipmentID        *string    `json:"equipment_id"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority"`
	TechnicianID       *string    `json:"technician_id"`
	TechnicianName     *string    `json:"technician_name"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	AssignedAt         *time.Time `json:"assigned_at"`
	ClosedAt           *time.Time `json:"closed_at"`
	LastPriorityChange time.Time  `json:"last_priority_change"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Equipment   *EquipmentResponse     `json:"equipment"`
	Attachments []AttachmentResponse   `json:"attachments"`
	Comments    []CommentResponse      `json:"comments"`
	History     []HistoryEntryResponse `json:"history"`
}

// AttachmentResponse returns the image both as raw base64 and as a data URL.
type AttachmentResponse struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	FileData    string    `json:"file_data"`
	DataURL     string    `json:"data_url"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// CommentResponse represents one discussion message.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntryResponse represents one audit entry. Action is the human
// readable text; ActionType the machine readable kind.
type HistoryEntryResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UserID     *string   `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     string    `json:"action"`
	ActionType string    `json:"action_type"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	Timestamp  time.Time `json:"timestamp"`
}
