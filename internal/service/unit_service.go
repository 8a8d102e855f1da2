package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type unitRepository interface {
	FindByID(ctx context.Context, id string) (*models.Unit, error)
	List(ctx context.Context, filter models.UnitFilter) ([]models.Unit, int, error)
	Create(ctx context.Context, unit *models.Unit) error
	Update(ctx context.Context, unit *models.Unit) error
	Delete(ctx context.Context, id string) error
}

// UpsertUnitRequest is the payload for creating or updating a unit.
type UpsertUnitRequest struct {
	Name    string  `json:"name" validate:"required,min=2"`
	Address *string `json:"address,omitempty"`
}

// UnitService manages the catalogue of physical units.
type UnitService struct {
	repo      unitRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUnitService constructs a UnitService.
func NewUnitService(repo unitRepository, validate *validator.Validate, logger *zap.Logger) *UnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UnitService{repo: repo, validator: validate, logger: logger}
}

// List returns units. Any authenticated caller may read the catalogue.
func (s *UnitService) List(ctx context.Context, filter models.UnitFilter) ([]models.Unit, int, error) {
	units, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list units")
	}
	return units, total, nil
}

// Get fetches one unit.
func (s *UnitService) Get(ctx context.Context, id string) (*models.Unit, error) {
	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	return unit, nil
}

// Create registers a new unit. Admin only.
func (s *UnitService) Create(ctx context.Context, principal models.Principal, req UpsertUnitRequest) (*models.Unit, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage units")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid unit payload")
	}
	unit := &models.Unit{
		Name:    strings.TrimSpace(req.Name),
		Address: req.Address,
		Active:  true,
	}
	if err := s.repo.Create(ctx, unit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unit")
	}
	s.logger.Info("unit created", zap.String("unit_id", unit.ID), zap.String("admin_id", principal.UserID))
	return unit, nil
}

// Update modifies a unit. Admin only.
func (s *UnitService) Update(ctx context.Context, principal models.Principal, id string, req UpsertUnitRequest) (*models.Unit, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage units")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid unit payload")
	}
	unit, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	unit.Name = strings.TrimSpace(req.Name)
	if req.Address != nil {
		unit.Address = req.Address
	}
	if err := s.repo.Update(ctx, unit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update unit")
	}
	return unit, nil
}

// Delete deactivates a unit. Admin only; existing references remain
// intact.
func (s *UnitService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may manage units")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete unit")
	}
	return nil
}
