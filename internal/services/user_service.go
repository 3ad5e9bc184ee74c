package services

import (
	"context"
	"fmt"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
	"github.com/kasira/billing-api/pkg/logger"
)

// UserService manages console operator accounts
type UserService struct {
	store repository.Store
}

// NewUserService creates a new user service
func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// CreateUserInput carries the arguments for CreateUser
type CreateUserInput struct {
	FullName string
	Email    string
	Password string
	Role     string
}

// UpdateUserInput carries the editable user fields
type UpdateUserInput struct {
	FullName *string
	Role     *string
	IsActive *bool
	Password *string
}

// CreateUser registers a new operator account
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.FullName == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: full name and email are required", ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if !models.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}

	user := &models.User{
		FullName: in.FullName,
		Email:    in.Email,
		Role:     in.Role,
		IsActive: true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: insert user: %v", ErrStoreFailure, err)
	}

	logger.Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// GetUser returns one user by id
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "user")
	}
	return user, nil
}

// ListUsers returns a page of users
func (s *UserService) ListUsers(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	users, total, err := s.store.Users().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list users: %v", ErrStoreFailure, err)
	}
	return users, total, nil
}

// UpdateUser edits an operator account
func (s *UserService) UpdateUser(ctx context.Context, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "user")
	}

	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.Role != nil {
		if !models.ValidRole(*in.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *in.Role)
		}
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
		}
		if err := user.SetPassword(*in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		// Force re-login everywhere after a password change.
		s.store.RefreshTokens().DeleteByUserID(ctx, user.ID)
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: update user: %v", ErrStoreFailure, err)
	}
	return user, nil
}

// DeleteUser removes an operator account and its refresh tokens
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	if _, err := s.store.Users().FindByID(ctx, id); err != nil {
		return wrapLookup(err, "user")
	}
	s.store.RefreshTokens().DeleteByUserID(ctx, id)
	if err := s.store.Users().Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: delete user: %v", ErrStoreFailure, err)
	}

	logger.Info("user deleted", "user_id", id)
	return nil
}
