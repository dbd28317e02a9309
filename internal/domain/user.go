package domain

import (
	"strings"
	"time"
)

// Role enumerates what a user may do in the helpdesk.
type Role string

const (
	RoleClient     Role = "cliente"
	RoleTechnician Role = "tecnico"
	RoleAdmin      Role = "admin"
)

var roleAliases = map[string]Role{
	"cliente":    RoleClient,
	"client":     RoleClient,
	"tecnico":    RoleTechnician,
	"técnico":    RoleTechnician,
	"technician": RoleTechnician,
	"admin":      RoleAdmin,
}

// ParseRole accepts the wire value or its English alias.
func ParseRole(raw string) (Role, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	return role, ok
}

// IsStaff reports whether the role works tickets rather than files them.
func (r Role) IsStaff() bool {
	return r == RoleTechnician || r == RoleAdmin
}

// UserStatus represents lifecycle states for a user account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "activo"
	UserStatusInactive UserStatus = "inactivo"
)

// AuthProvider records how a user proves their identity.
type AuthProvider string

const (
	AuthProviderPassword  AuthProvider = "password"
	AuthProviderFederated AuthProvider = "federated"
)

// User is anyone who can sign in: clients filing tickets, technicians and
// admins working them.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	AuthProvider AuthProvider
	Picture      *string
	Role         Role
	Phone        *string
	DepartmentID *string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
