package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/repository"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, att *models.Attendance) error
	ListByClass(ctx context.Context, classID string) ([]models.Attendance, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

type attendanceClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

type attendanceStudentRepository interface {
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

type classAuthorizer interface {
	CanManageClass(principal models.Principal, class models.Class) bool
}

// AttendanceEntryRequest is one student's presence mark in a submission.
type AttendanceEntryRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Present   bool    `json:"present"`
	Note      *string `json:"note,omitempty"`
}

// CreateAttendanceRequest is the payload for filing a daily call.
type CreateAttendanceRequest struct {
	ClassID string                   `json:"class_id" validate:"required"`
	Date    string                   `json:"date" validate:"required"`
	Note    *string                  `json:"note,omitempty"`
	Entries []AttendanceEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService implements the write-once daily attendance ledger.
type AttendanceService struct {
	attendance attendanceRepository
	classes    attendanceClassRepository
	students   attendanceStudentRepository
	scope      classAuthorizer
	validator  *validator.Validate
	logger     *zap.Logger

	// todayOnly restores the historical rule that a call may only be
	// filed for the current date, rejecting backfill.
	todayOnly bool
	now       func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(attendance attendanceRepository, classes attendanceClassRepository, students attendanceStudentRepository, scope classAuthorizer, validate *validator.Validate, logger *zap.Logger, todayOnly bool) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		attendance: attendance,
		classes:    classes,
		students:   students,
		scope:      scope,
		validator:  validate,
		logger:     logger,
		todayOnly:  todayOnly,
		now:        time.Now,
	}
}

// Create files the daily call for a class. The date must not be in the
// future, the caller must manage the class, and the (class, date) pair
// must be unfiled; a duplicate loses with Conflict, enforced by the
// storage layer so concurrent submissions cannot both win.
func (s *AttendanceService) Create(ctx context.Context, principal models.Principal, req CreateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid attendance payload")
	}

	date, err := dates.Parse(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid attendance date")
	}

	today := dates.Truncate(s.now().UTC())
	if date.After(today) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "attendance date cannot be in the future")
	}
	if s.todayOnly && !date.Equal(today) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "attendance may only be filed for today")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !s.scope.CanManageClass(principal, *class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot file attendance for this class")
	}

	recordedAt := s.now().UTC()
	att := &models.Attendance{
		ClassID:      class.ID,
		Date:         date,
		Note:         req.Note,
		RecordedByID: principal.UserID,
	}
	seen := make(map[string]bool, len(req.Entries))
	for _, e := range req.Entries {
		if seen[e.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("student %s appears twice", e.StudentID))
		}
		seen[e.StudentID] = true
		entry := models.AttendanceEntry{
			StudentID: e.StudentID,
			Present:   e.Present,
			Note:      e.Note,
		}
		if e.Present {
			ts := recordedAt
			entry.RecordedAt = &ts
			att.TotalPresent++
		} else {
			att.TotalAbsent++
		}
		att.Entries = append(att.Entries, entry)
	}

	if err := s.attendance.Create(ctx, att); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for this class and date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance")
	}

	s.logger.Info("attendance recorded",
		zap.String("class_id", class.ID),
		zap.String("date", date.Format(dates.DayOnly)),
		zap.Int("present", att.TotalPresent),
		zap.Int("absent", att.TotalAbsent))
	return att, nil
}

// ListByClass returns the attendance history of a class, newest first.
// Visibility: admins see any class, other roles only classes in their
// home unit.
func (s *AttendanceService) ListByClass(ctx context.Context, principal models.Principal, classID string) ([]models.Attendance, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !principal.IsAdmin() && class.UnitID != principal.HomeUnit() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your unit")
	}
	records, err := s.attendance.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// ResetAllResult reports the rows removed by an environment reset.
type ResetAllResult struct {
	StudentsRemoved    int `json:"students_removed"`
	ClassesRemoved     int `json:"classes_removed"`
	AttendancesRemoved int `json:"attendances_removed"`
}

// ResetAll wipes every student, class, and attendance record. Admin
// only, irreversible, used for environment resets.
func (s *AttendanceService) ResetAll(ctx context.Context, principal models.Principal) (*ResetAllResult, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may reset the environment")
	}

	students, err := s.students.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	classes, err := s.classes.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	attendances, err := s.attendance.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}

	s.logger.Warn("environment reset requested",
		zap.String("admin_id", principal.UserID),
		zap.Int("students", students),
		zap.Int("classes", classes),
		zap.Int("attendances", attendances))

	if err := s.attendance.DeleteAll(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	if err := s.classes.DeleteAll(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classes")
	}
	if err := s.students.DeleteAll(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete students")
	}

	s.logger.Warn("environment reset complete",
		zap.Int("students_removed", students),
		zap.Int("classes_removed", classes),
		zap.Int("attendances_removed", attendances))

	return &ResetAllResult{
		StudentsRemoved:    students,
		ClassesRemoved:     classes,
		AttendancesRemoved: attendances,
	}, nil
}
