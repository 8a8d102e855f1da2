package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type dropoutRepository interface {
	Create(ctx context.Context, record *models.DropoutRecord) error
	ListByStudent(ctx context.Context, studentID string) ([]models.DropoutRecord, error)
	List(ctx context.Context, unitID, courseID string, page, pageSize int) ([]models.DropoutRecord, int, error)
	DeleteByStudent(ctx context.Context, studentID string) error
}

type dropoutStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
}

type dropoutClassRepository interface {
	RemoveStudentFromAll(ctx context.Context, studentID string) error
}

type studentAuthorizer interface {
	CanManageStudent(ctx context.Context, principal models.Principal, studentID string) (bool, error)
}

// WithdrawRequest is the payload for recording a student's withdrawal.
type WithdrawRequest struct {
	StudentID  string  `json:"student_id" validate:"required"`
	ReasonCode string  `json:"reason_code" validate:"required"`
	ReasonText *string `json:"reason_text,omitempty"`
	ClassID    *string `json:"class_id,omitempty"`
}

// DropoutService handles the withdrawal lifecycle: recording dropouts,
// pulling the student from every roster, and privileged reactivation.
type DropoutService struct {
	dropouts  dropoutRepository
	students  dropoutStudentRepository
	classes   dropoutClassRepository
	scope     studentAuthorizer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDropoutService constructs a DropoutService.
func NewDropoutService(dropouts dropoutRepository, students dropoutStudentRepository, classes dropoutClassRepository, scope studentAuthorizer, validate *validator.Validate, logger *zap.Logger) *DropoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DropoutService{
		dropouts:  dropouts,
		students:  students,
		classes:   classes,
		scope:     scope,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Withdraw transitions a student to withdrawn, records the reason, and
// detaches the student from every class roster so they never reappear
// in attendance calls. Monitors cannot withdraw students.
func (s *DropoutService) Withdraw(ctx context.Context, principal models.Principal, req WithdrawRequest) (*models.DropoutRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid withdrawal payload")
	}
	if principal.Role == models.RoleMonitor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "monitors cannot withdraw students")
	}
	if !models.ValidDropoutReason(req.ReasonCode) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown withdrawal reason code")
	}
	if req.ReasonCode == models.DropoutReasonCustom && (req.ReasonText == nil || strings.TrimSpace(*req.ReasonText) == "") {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "custom reason requires a written explanation")
	}

	allowed, err := s.scope.CanManageStudent(ctx, principal, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status == models.StudentStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already withdrawn")
	}

	record := &models.DropoutRecord{
		StudentID:      student.ID,
		StudentName:    student.FullName,
		ClassID:        req.ClassID,
		WithdrawalDate: dates.Truncate(s.now().UTC()),
		ReasonCode:     req.ReasonCode,
		ReasonText:     req.ReasonText,
		RecordedByID:   principal.UserID,
		RecordedByName: principal.FullName,
	}
	if err := s.dropouts.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record withdrawal")
	}
	if err := s.students.UpdateStatus(ctx, student.ID, models.StudentStatusWithdrawn); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	if err := s.classes.RemoveStudentFromAll(ctx, student.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to detach student from rosters")
	}

	s.logger.Info("student withdrawn",
		zap.String("student_id", student.ID),
		zap.String("reason", req.ReasonCode),
		zap.String("recorded_by", principal.UserID))
	return record, nil
}

// Reactivate restores a withdrawn student to active and deletes their
// dropout records. Admin only; the student is NOT re-enrolled in any
// class, re-enrollment is a separate explicit action.
func (s *DropoutService) Reactivate(ctx context.Context, principal models.Principal, studentID string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may reactivate students")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusWithdrawn {
		return appErrors.Clone(appErrors.ErrConflict, "student is not withdrawn")
	}
	if err := s.students.UpdateStatus(ctx, studentID, models.StudentStatusActive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	if err := s.dropouts.DeleteByStudent(ctx, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete dropout records")
	}
	s.logger.Info("student reactivated",
		zap.String("student_id", studentID),
		zap.String("admin_id", principal.UserID))
	return nil
}

// List returns dropout records scoped to the caller: admins see all,
// other roles their home unit.
func (s *DropoutService) List(ctx context.Context, principal models.Principal, page, pageSize int) ([]models.DropoutRecord, int, error) {
	unitID := ""
	if !principal.IsAdmin() {
		unitID = principal.HomeUnit()
		if unitID == "" {
			return []models.DropoutRecord{}, 0, nil
		}
	}
	records, total, err := s.dropouts.List(ctx, unitID, "", page, pageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dropouts")
	}
	return records, total, nil
}

// Reasons exposes the fixed withdrawal reason catalogue.
func (s *DropoutService) Reasons() map[string]string {
	return models.DropoutReasons
}
