package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	AddStudent(ctx context.Context, classID, studentID string) (bool, error)
	RemoveStudent(ctx context.Context, classID, studentID string) error
	Delete(ctx context.Context, id string) error
}

type classUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type classStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classScope interface {
	VisibleClasses(ctx context.Context, principal models.Principal) ([]models.Class, error)
	CanManageClass(principal models.Principal, class models.Class) bool
}

// CreateClassRequest is the payload for opening a cohort.
type CreateClassRequest struct {
	Name          string  `json:"name" validate:"required,min=2"`
	UnitID        string  `json:"unit_id" validate:"required"`
	CourseID      string  `json:"course_id" validate:"required"`
	ResponsibleID *string `json:"responsible_id,omitempty"`
	MonitorID     *string `json:"monitor_id,omitempty"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       string  `json:"end_date" validate:"required"`
	StartTime     string  `json:"start_time" validate:"required"`
	EndTime       string  `json:"end_time" validate:"required"`
	TotalSeats    int     `json:"total_seats" validate:"required,min=1,max=500"`
}

// UpdateClassRequest carries optional class field updates.
type UpdateClassRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=2"`
	MonitorID  *string `json:"monitor_id,omitempty"`
	StartDate  *string `json:"start_date,omitempty"`
	EndDate    *string `json:"end_date,omitempty"`
	StartTime  *string `json:"start_time,omitempty"`
	EndTime    *string `json:"end_time,omitempty"`
	TotalSeats *int    `json:"total_seats,omitempty" validate:"omitempty,min=1,max=500"`
}

// ClassService manages cohort lifecycle and roster membership.
type ClassService struct {
	repo      classRepository
	users     classUserRepository
	students  classStudentRepository
	scope     classScope
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, users classUserRepository, students classStudentRepository, scope classScope, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{
		repo:      repo,
		users:     users,
		students:  students,
		scope:     scope,
		validator: validate,
		logger:    logger,
	}
}

// List returns the classes visible to the caller.
func (s *ClassService) List(ctx context.Context, principal models.Principal) ([]models.Class, error) {
	return s.scope.VisibleClasses(ctx, principal)
}

// Get fetches one class the principal can see.
func (s *ClassService) Get(ctx context.Context, principal models.Principal, id string) (*models.Class, error) {
	class, err := s.findClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && !s.scope.CanManageClass(principal, *class) {
		if class.UnitID != principal.HomeUnit() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your scope")
		}
	}
	return class, nil
}

// Create opens a new cohort. The class kind follows from the
// responsible user's role: instructors run regular classes, pedagogues
// run extension classes. Non-admins are pinned to their own unit and
// course and become the responsible themselves.
func (s *ClassService) Create(ctx context.Context, principal models.Principal, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid class payload")
	}
	if principal.Role == models.RoleMonitor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "monitors cannot create classes")
	}

	responsibleID := principal.UserID
	if principal.IsAdmin() {
		if req.ResponsibleID == nil || *req.ResponsibleID == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "responsible_id is required")
		}
		responsibleID = *req.ResponsibleID
	} else {
		if req.UnitID != principal.HomeUnit() || req.CourseID != principal.HomeCourse() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "classes must belong to your own unit and course")
		}
	}

	responsible, err := s.users.FindByID(ctx, responsibleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "responsible user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responsible user")
	}
	if responsible.Role != models.RoleInstructor && responsible.Role != models.RolePedagogue {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "responsible must be an instructor or pedagogue")
	}

	start, err := dates.Parse(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid start date")
	}
	end, err := dates.Parse(req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid end date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "end date precedes start date")
	}

	class := &models.Class{
		Name:          req.Name,
		UnitID:        req.UnitID,
		CourseID:      req.CourseID,
		ResponsibleID: responsible.ID,
		MonitorID:     req.MonitorID,
		Kind:          models.KindForRole(responsible.Role),
		StartDate:     start,
		EndDate:       end,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		TotalSeats:    req.TotalSeats,
		Active:        true,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created",
		zap.String("class_id", class.ID),
		zap.String("kind", string(class.Kind)),
		zap.String("responsible_id", class.ResponsibleID))
	return class, nil
}

// Update merges the supplied fields into the stored class.
func (s *ClassService) Update(ctx context.Context, principal models.Principal, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid class payload")
	}
	class, err := s.findClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.scope.CanManageClass(principal, *class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this class")
	}

	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.MonitorID != nil {
		class.MonitorID = req.MonitorID
	}
	if req.StartDate != nil {
		start, err := dates.Parse(*req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid start date")
		}
		class.StartDate = start
	}
	if req.EndDate != nil {
		end, err := dates.Parse(*req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid end date")
		}
		class.EndDate = end
	}
	if class.EndDate.Before(class.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "end date precedes start date")
	}
	if req.StartTime != nil {
		class.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		class.EndTime = *req.EndTime
	}
	if req.TotalSeats != nil {
		if *req.TotalSeats < class.OccupiedSeats {
			return nil, appErrors.Clone(appErrors.ErrConflict, "seat count below current enrollment")
		}
		class.TotalSeats = *req.TotalSeats
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Enroll adds an active student to the class roster. Enrolling an
// already present student is a no-op reported as a conflict.
func (s *ClassService) Enroll(ctx context.Context, principal models.Principal, classID, studentID string) error {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return err
	}
	if !s.scope.CanManageClass(principal, *class) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this class")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status == models.StudentStatusWithdrawn {
		return appErrors.Clone(appErrors.ErrConflict, "withdrawn students cannot be enrolled")
	}

	added, err := s.repo.AddStudent(ctx, classID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	}
	if !added {
		return appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
	}
	s.logger.Info("student enrolled",
		zap.String("class_id", classID),
		zap.String("student_id", studentID),
		zap.String("user_id", principal.UserID))
	return nil
}

// Unenroll removes a student from the class roster.
func (s *ClassService) Unenroll(ctx context.Context, principal models.Principal, classID, studentID string) error {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return err
	}
	if !s.scope.CanManageClass(principal, *class) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this class")
	}
	if !class.ContainsStudent(studentID) {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this class")
	}
	if err := s.repo.RemoveStudent(ctx, classID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	return nil
}

// Delete deactivates the class. Attendance history is kept.
func (s *ClassService) Delete(ctx context.Context, principal models.Principal, id string) error {
	class, err := s.findClass(ctx, id)
	if err != nil {
		return err
	}
	if !s.scope.CanManageClass(principal, *class) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deactivated",
		zap.String("class_id", id),
		zap.String("user_id", principal.UserID))
	return nil
}

func (s *ClassService) findClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}
