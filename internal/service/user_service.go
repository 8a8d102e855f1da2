package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type adminUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// CreateUserRequest is the admin payload for provisioning an account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"full_name" validate:"required,min=3"`
	Role     models.UserRole `json:"role" validate:"required"`
	UnitID   *string         `json:"unit_id,omitempty"`
	CourseID *string         `json:"course_id,omitempty"`
}

// UpdateUserRequest carries optional account field updates.
type UpdateUserRequest struct {
	FullName *string          `json:"full_name,omitempty" validate:"omitempty,min=3"`
	Role     *models.UserRole `json:"role,omitempty"`
	UnitID   *string          `json:"unit_id,omitempty"`
	CourseID *string          `json:"course_id,omitempty"`
	Active   *bool            `json:"active,omitempty"`
}

// UserService provides admin-only account administration.
type UserService struct {
	repo      adminUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo adminUserRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns user accounts. Admin only.
func (s *UserService) List(ctx context.Context, principal models.Principal, filter models.UserFilter) ([]models.User, int, error) {
	if !principal.IsAdmin() {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "only admins may list users")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// ListPending returns accounts awaiting admin approval.
func (s *UserService) ListPending(ctx context.Context, principal models.Principal, page, pageSize int) ([]models.User, int, error) {
	if !principal.IsAdmin() {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "only admins may list users")
	}
	pending := models.UserStatusPending
	return s.List(ctx, principal, models.UserFilter{Status: &pending, Page: page, PageSize: pageSize})
}

// Get fetches one account. Admins see anyone; others only themselves.
func (s *UserService) Get(ctx context.Context, principal models.Principal, id string) (*models.User, error) {
	if !principal.IsAdmin() && principal.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only view your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions an account directly in the active state. Admin
// only; the self-service path goes through first access and approval.
func (s *UserService) Create(ctx context.Context, principal models.Principal, req CreateUserRequest) (*models.User, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may create users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid user payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown role")
	}
	if req.Role != models.RoleAdmin && (req.UnitID == nil || *req.UnitID == "") {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "non-admin accounts require a unit")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Status:       models.UserStatusActive,
		UnitID:       req.UnitID,
		CourseID:     req.CourseID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("admin_id", principal.UserID))
	return user, nil
}

// Update merges the supplied fields into the stored account. Admin only.
func (s *UserService) Update(ctx context.Context, principal models.Principal, id string, req UpdateUserRequest) (*models.User, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may update users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid user payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown role")
		}
		user.Role = *req.Role
	}
	if req.UnitID != nil {
		user.UnitID = req.UnitID
	}
	if req.CourseID != nil {
		user.CourseID = req.CourseID
	}
	if req.Active != nil {
		user.Active = *req.Active
		if !user.Active {
			user.Status = models.UserStatusInactive
		} else if user.Status == models.UserStatusInactive {
			user.Status = models.UserStatusActive
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if req.Active != nil && !*req.Active {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}
	return user, nil
}

// Delete soft-deletes an account and revokes its sessions. Admins
// cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete users")
	}
	if principal.UserID == id {
		return appErrors.Clone(appErrors.ErrInvalidInput, "you cannot delete your own account")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions of deleted user", zap.String("user_id", id), zap.Error(err))
	}
	s.logger.Info("user deleted",
		zap.String("user_id", id),
		zap.String("admin_id", principal.UserID))
	return nil
}
