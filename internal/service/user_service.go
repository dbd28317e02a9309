package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UserService lists accounts for staff screens.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// ListTechnicians returns users with role tecnico, for assignment pickers.
func (s *UserService) ListTechnicians(ctx context.Context, caller *domain.User) ([]domain.User, error) {
	if !access.CanListTechnicians(caller) {
		return nil, apperrors.NewForbidden("only staff can list technicians")
	}
	users, err := s.users.List(ctx, repository.UserFilter{Roles: []domain.Role{domain.RoleTechnician}})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// ListUsers returns every user, optionally narrowed to one role.
func (s *UserService) ListUsers(ctx context.Context, caller *domain.User, role string) ([]domain.User, error) {
	if !access.CanListUsers(caller) {
		return nil, apperrors.NewForbidden("only staff can list users")
	}
	filter := repository.UserFilter{}
	if role != "" {
		parsed, ok := domain.ParseRole(role)
		if !ok {
			return nil, apperrors.NewValidationError("invalid role filter", map[string]any{"role": role})
		}
		filter.Roles = []domain.Role{parsed}
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}
