package auth

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/utils"
)

// MinPasswordLength applies to passwords chosen by users.
const MinPasswordLength = 8

// Store is the persistence the auth service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	CustomerActive(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service implements login and password management.
type Service struct {
	store  Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(store Store, jwt *JWTService, logger *zap.Logger) *Service {
	return &Service{store: store, jwt: jwt, logger: logger}
}

var errInvalidCredentials = apperr.Unauthenticated("invalid login or password")

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, login, password string) (string, *models.User, error) {
	user, err := s.store.GetByLogin(ctx, login)
	if err != nil {
		if database.IsNoRows(err) {
			return "", nil, errInvalidCredentials
		}
		return "", nil, apperr.Internal("get user", err)
	}
	if !utils.CheckPassword(password, user.Password) {
		return "", nil, errInvalidCredentials
	}
	if !user.Active {
		return "", nil, apperr.Unauthenticated("account is inactive")
	}
	if user.CustomerID != nil && user.PrimaryRole() != models.RoleSystemAdmin {
		active, err := s.store.CustomerActive(ctx, *user.CustomerID)
		if err != nil {
			return "", nil, apperr.Internal("get customer", err)
		}
		if !active {
			return "", nil, apperr.Unauthenticated("customer is inactive")
		}
	}
	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return "", nil, apperr.Internal("generate token", err)
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID.String()))
	return token, user, nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, p *access.Principal) (*models.User, error) {
	if p == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}
	user, err := s.store.GetByID(ctx, p.UserID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("get user", err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, p *access.Principal, current, next string) error {
	user, err := s.Me(ctx, p)
	if err != nil {
		return err
	}
	fields := apperr.FieldErrors{}
	if !utils.CheckPassword(current, user.Password) {
		fields.Add("current_password", "Current password is incorrect")
	}
	if len(next) < MinPasswordLength {
		fields.Add("new_password", "Must be at least 8 characters")
	} else if next == current {
		fields.Add("new_password", "New password must differ from the current one")
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperr.Internal("update password", err)
	}
	return nil
}
