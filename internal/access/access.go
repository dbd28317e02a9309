// Package access decides what a user may do with a ticket. Every function
// is pure; callers load the user and ticket first.
package access

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Operation is an action a user attempts on a ticket.
type Operation string

const (
	OpRead    Operation = "read"
	OpComment Operation = "comment"
	OpUpdate  Operation = "update"
)

// CanAccess reports whether user may perform op on ticket. Clients may read
// and comment on their own tickets and never update; technicians and admins
// may do anything to any ticket.
func CanAccess(user *domain.User, ticket *domain.Ticket, op Operation) bool {
	if user == nil || ticket == nil {
		return false
	}
	switch user.Role {
	case domain.RoleTechnician, domain.RoleAdmin:
		return true
	case domain.RoleClient:
		if op == OpUpdate {
			return false
		}
		return ticket.RequesterID == user.ID
	default:
		return false
	}
}

// CanCreateTicket admits clients only.
func CanCreateTicket(user *domain.User) bool {
	return user != nil && user.Role == domain.RoleClient
}

// CanListAllTickets reports whether user sees every ticket rather than
// their own.
func CanListAllTickets(user *domain.User) bool {
	return user != nil && user.Role.IsStaff()
}

// CanListAssignment gates the my-assigned and my-resolved views.
func CanListAssignment(user *domain.User) bool {
	return user != nil && user.Role.IsStaff()
}

func CanListTechnicians(user *domain.User) bool {
	return user != nil && user.Role.IsStaff()
}

func CanListUsers(user *domain.User) bool {
	return user != nil && user.Role.IsStaff()
}
