package dto

import "time"

// CategoryResponse describes a ticket category.
type CategoryResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultPriority *string   `json:"default_priority"`
	CreatedAt       time.Time `json:"created_at"`
}

// DepartmentResponse describes a department.
type DepartmentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// EquipmentResponse describes an inventory item.
type EquipmentResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Brand        *string   `json:"brand"`
	Model        *string   `json:"model"`
	SerialNumber *string   `json:"serial_number"`
	OwnerID      *string   `json:"owner_id"`
	DepartmentID *string   `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
}
