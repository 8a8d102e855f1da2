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

var validWeekdays = map[string]bool{
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
	"sunday":    true,
}

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

// UpsertCourseRequest is the payload for creating or updating a course.
type UpsertCourseRequest struct {
	Name       string   `json:"name" validate:"required,min=2"`
	TotalHours int      `json:"total_hours" validate:"omitempty,min=1"`
	ClassDays  []string `json:"class_days,omitempty"`
}

// CourseService manages the course catalogue, including the weekday
// schedule that drives pending attendance detection.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// List returns courses. Any authenticated caller may read the catalogue.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, total, nil
}

// Get fetches one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course. Admin only. When no schedule is given
// the default Monday through Thursday schedule applies.
func (s *CourseService) Create(ctx context.Context, principal models.Principal, req UpsertCourseRequest) (*models.Course, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage courses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid course payload")
	}
	days, err := normalizeClassDays(req.ClassDays)
	if err != nil {
		return nil, err
	}
	course := &models.Course{
		Name:       strings.TrimSpace(req.Name),
		TotalHours: req.TotalHours,
		ClassDays:  days,
		Active:     true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("admin_id", principal.UserID))
	return course, nil
}

// Update modifies a course. Admin only.
func (s *CourseService) Update(ctx context.Context, principal models.Principal, id string, req UpsertCourseRequest) (*models.Course, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage courses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Name = strings.TrimSpace(req.Name)
	if req.TotalHours > 0 {
		course.TotalHours = req.TotalHours
	}
	if req.ClassDays != nil {
		days, err := normalizeClassDays(req.ClassDays)
		if err != nil {
			return nil, err
		}
		course.ClassDays = days
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete deactivates a course. Admin only.
func (s *CourseService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may manage courses")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// normalizeClassDays lowercases and validates weekday names, dropping
// duplicates while preserving order.
func normalizeClassDays(days []string) ([]string, error) {
	if len(days) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(days))
	out := make([]string, 0, len(days))
	for _, d := range days {
		day := strings.ToLower(strings.TrimSpace(d))
		if !validWeekdays[day] {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown weekday in class schedule")
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	return out, nil
}
