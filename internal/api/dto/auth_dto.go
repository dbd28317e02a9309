package dto

import "time"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Password     string  `json:"password"`
	Role         string  `json:"role"`
	Phone        *string `json:"phone"`
	DepartmentID *string `json:"department_id"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user. Password hashes never leave
// the service.
type UserResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Phone        *string   `json:"phone"`
	Picture      *string   `json:"picture"`
	DepartmentID *string   `json:"department_id"`
	Status       string    `json:"status"`
	AuthProvider string    `json:"auth_provider"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	User         UserResponse `json:"user"`
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	SessionToken string       `json:"session_token,omitempty"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
