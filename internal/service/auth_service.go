package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const minPasswordLength = 6

// AuthService coordinates registration, login and session resolution.
type AuthService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	sessions    repository.SessionRepository
	federated   auth.FederatedProvider
	tokenMgr    *auth.TokenManager
	clock       clock.Clock
	logger      *zap.Logger
	bcryptCost  int
	sessionTTL  time.Duration
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
	SessionRepo    repository.SessionRepository
	Federated      auth.FederatedProvider
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		sessions:    deps.SessionRepo,
		federated:   deps.Federated,
		tokenMgr:    auth.NewTokenManager(cfg.JWTSecret, clk.Now),
		clock:       clk,
		logger:      logger,
		bcryptCost:  cfg.BcryptCost,
		sessionTTL:  cfg.AccessTokenTTL(),
	}
}

// RegisterInput carries self-registration fields.
type RegisterInput struct {
	Email        string
	Name         string
	Password     string
	Role         string
	Phone        *string
	DepartmentID *string
}

// AuthResult is what every successful sign-in returns.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
	// SessionToken is the provider's token for federated sign-ins.
	SessionToken string
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a cliente or tecnico account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)

	details := map[string]any{}
	if email == "" {
		details["email"] = "required"
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		details["email"] = "invalid format"
	}
	if name == "" {
		details["name"] = "required"
	}
	if len(input.Password) < minPasswordLength {
		details["password"] = "must be at least 6 characters"
	}

	role := domain.RoleClient
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := domain.ParseRole(input.Role)
		switch {
		case !ok:
			details["role"] = "unknown role"
		case parsed == domain.RoleAdmin:
			details["role"] = "admin accounts cannot self-register"
		default:
			role = parsed
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", details)
	}

	deptID := trimmedOrNil(input.DepartmentID)
	if deptID != nil {
		if _, err := s.departments.GetByID(ctx, *deptID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewValidationError("invalid registration", map[string]any{"department_id": "not found"})
			}
			return nil, apperrors.NewInternalError(err)
		}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.clock.Now()
	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		AuthProvider: domain.AuthProviderPassword,
		Role:         role,
		Phone:        trimmedOrNil(input.Phone),
		DepartmentID: deptID,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateEmail()
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issueSession(ctx, user, domain.AuthProviderPassword)
}

// Login authenticates with email and password. Every failure looks the same
// to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewInvalidCredentials()
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewInvalidCredentials()
	}
	return s.issueSession(ctx, user, domain.AuthProviderPassword)
}

// ExchangeFederatedSession trades a provider session id for a local
// session, creating a cliente account on first sign-in.
func (s *AuthService) ExchangeFederatedSession(ctx context.Context, sessionID string) (*AuthResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session_id is required", map[string]any{"session_id": "required"})
	}
	if s.federated == nil {
		return nil, apperrors.NewFederatedAuthError(auth.ErrFederatedDisabled)
	}

	profile, err := s.federated.FetchProfile(ctx, sessionID)
	if err != nil {
		s.logger.Warn("federated exchange failed", zap.Error(err))
		return nil, apperrors.NewFederatedAuthError(err)
	}

	profile.Email = NormalizeEmail(profile.Email)
	if profile.Email == "" {
		return nil, apperrors.NewFederatedAuthError(errors.New("provider returned no email"))
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.createFederatedUser(ctx, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewInternalError(err)
	}

	result, err := s.issueSession(ctx, user, domain.AuthProviderFederated)
	if err != nil {
		return nil, err
	}
	result.SessionToken = profile.SessionToken
	if result.SessionToken == "" {
		result.SessionToken = sessionID
	}
	return result, nil
}

func (s *AuthService) createFederatedUser(ctx context.Context, profile *auth.FederatedProfile) (*domain.User, error) {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.SplitN(profile.Email, "@", 2)[0]
	}
	now := s.clock.Now()
	user := &domain.User{
		Email:        profile.Email,
		Name:         name,
		AuthProvider: domain.AuthProviderFederated,
		Picture:      profile.Picture,
		Role:         domain.RoleClient,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewInternalError(err)
		}
		// Lost a race with a concurrent first sign-in.
		existing, getErr := s.users.GetByEmail(ctx, profile.Email)
		if getErr != nil {
			return nil, apperrors.NewInternalError(getErr)
		}
		return existing, nil
	}
	s.logger.Info("federated user created", zap.String("user_id", user.ID))
	return user, nil
}

// ResolveToken maps a bearer token to its user and live session.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid token")
	}

	session, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("session expired or revoked")
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	if session.UserID != claims.UserID() || session.Expired(s.clock.Now()) {
		return nil, nil, apperrors.NewUnauthorized("session expired or revoked")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, session, nil
}

// Logout revokes the token's session. It never fails: unknown, expired or
// malformed tokens are simply ignored.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	sessionID, ok := s.tokenMgr.SessionID(token)
	if !ok {
		return
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("session delete failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Me reloads the caller's user record.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *domain.User, provider domain.AuthProvider) (*AuthResult, error) {
	now := s.clock.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	token, err := s.tokenMgr.GenerateToken(session)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
