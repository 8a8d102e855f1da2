package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/cpf"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
}

type studentScope interface {
	VisibleStudents(ctx context.Context, principal models.Principal, filter models.StudentFilter) ([]models.Student, error)
	CanRegisterStudent(principal models.Principal) bool
	CanManageStudent(ctx context.Context, principal models.Principal, studentID string) (bool, error)
}

// CreateStudentRequest is the payload for registering one student.
type CreateStudentRequest struct {
	FullName    string  `json:"full_name" validate:"required,min=3"`
	CPF         string  `json:"cpf" validate:"required"`
	BirthDate   *string `json:"birth_date,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty"`
	SecondaryID *string `json:"secondary_id,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Address     *string `json:"address,omitempty"`
	UnitID      *string `json:"unit_id,omitempty"`
	CourseID    *string `json:"course_id,omitempty"`
}

// UpdateStudentRequest carries optional field updates.
type UpdateStudentRequest struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,min=3"`
	BirthDate *string `json:"birth_date,omitempty"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	Address   *string `json:"address,omitempty"`
	CourseID  *string `json:"course_id,omitempty"`
}

// StudentService provides roster management for students.
type StudentService struct {
	repo      studentRepository
	scope     studentScope
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, scope studentScope, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, scope: scope, validator: validate, logger: logger}
}

// List returns the students visible to the principal. Withdrawn
// students only surface for admins asking for them.
func (s *StudentService) List(ctx context.Context, principal models.Principal, filter models.StudentFilter) ([]models.Student, error) {
	if !principal.IsAdmin() {
		filter.IncludeWithdrawn = false
	}
	return s.scope.VisibleStudents(ctx, principal, filter)
}

// Get fetches one student the principal may manage or see.
func (s *StudentService) Get(ctx context.Context, principal models.Principal, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !principal.IsAdmin() {
		allowed, err := s.scope.CanManageStudent(ctx, principal, id)
		if err != nil {
			return nil, err
		}
		if !allowed && (student.UnitID == nil || *student.UnitID != principal.HomeUnit()) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is outside your scope")
		}
	}
	return student, nil
}

// Create registers a student after the role gate, CPF checksum, and
// uniqueness checks.
func (s *StudentService) Create(ctx context.Context, principal models.Principal, req CreateStudentRequest) (*models.Student, error) {
	if !s.scope.CanRegisterStudent(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "your role cannot register students")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid student payload")
	}
	if len(strings.Fields(req.FullName)) < 2 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "full name must include a surname")
	}

	normalized := cpf.Normalize(req.CPF)
	if !cpf.Valid(normalized) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid cpf")
	}
	if _, err := s.repo.FindByCPF(ctx, normalized); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cpf already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cpf")
	}

	student := &models.Student{
		FullName:      strings.TrimSpace(req.FullName),
		CPF:           normalized,
		Email:         req.Email,
		Phone:         req.Phone,
		SecondaryID:   req.SecondaryID,
		Gender:        req.Gender,
		Address:       req.Address,
		UnitID:        req.UnitID,
		CourseID:      req.CourseID,
		Status:        models.StudentStatusActive,
		Active:        true,
		CreatedByID:   principal.UserID,
		CreatedByName: principal.FullName,
		CreatedByRole: principal.Role,
	}
	if student.UnitID == nil {
		if unit := principal.HomeUnit(); unit != "" {
			student.UnitID = &unit
		}
	}
	if student.CourseID == nil {
		if course := principal.HomeCourse(); course != "" {
			student.CourseID = &course
		}
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		parsed, err := dates.Parse(*req.BirthDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid birth date")
		}
		student.BirthDate = &parsed
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("created_by", principal.UserID),
		zap.String("creator_role", string(principal.Role)))
	return student, nil
}

// Update merges the supplied fields into the stored student.
func (s *StudentService) Update(ctx context.Context, principal models.Principal, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid student payload")
	}
	allowed, err := s.scope.CanManageStudent(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if req.FullName != nil {
		student.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		parsed, err := dates.Parse(*req.BirthDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid birth date")
		}
		student.BirthDate = &parsed
	}
	if req.Email != nil {
		student.Email = req.Email
	}
	if req.Phone != nil {
		student.Phone = req.Phone
	}
	if req.Gender != nil {
		student.Gender = req.Gender
	}
	if req.Address != nil {
		student.Address = req.Address
	}
	if req.CourseID != nil {
		student.CourseID = req.CourseID
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// ChangeStatus transitions a student between lifecycle states. The
// withdrawn transition belongs to the dropout service, never here.
func (s *StudentService) ChangeStatus(ctx context.Context, principal models.Principal, id string, status models.StudentStatus) error {
	if !models.ValidStudentStatus(status) {
		return appErrors.Clone(appErrors.ErrInvalidInput, "unknown student status")
	}
	if status == models.StudentStatusWithdrawn {
		return appErrors.Clone(appErrors.ErrInvalidInput, "use the withdrawal flow to withdraw a student")
	}
	allowed, err := s.scope.CanManageStudent(ctx, principal, id)
	if err != nil {
		return err
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	return nil
}
