package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type scopeClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	ListContainingStudent(ctx context.Context, studentID string) ([]models.Class, error)
}

type scopeStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListByIDs(ctx context.Context, ids []string, includeWithdrawn bool) ([]models.Student, error)
}

// ScopeService computes which students and classes a principal may see
// or mutate. Every rule here is role-driven: admins see everything,
// instructors their own taught cohorts, pedagogues and monitors their
// home unit.
type ScopeService struct {
	classes  scopeClassRepository
	students scopeStudentRepository
	logger   *zap.Logger
}

// NewScopeService constructs a ScopeService.
func NewScopeService(classes scopeClassRepository, students scopeStudentRepository, logger *zap.Logger) *ScopeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{classes: classes, students: students, logger: logger}
}

// VisibleClasses returns the classes the principal may see.
// Admin sees all active classes; an instructor their own responsible
// classes inside the home unit and course; a pedagogue only
// extension-kind classes in the home scope; a monitor any kind in the
// home scope.
func (s *ScopeService) VisibleClasses(ctx context.Context, principal models.Principal) ([]models.Class, error) {
	active := true
	filter := models.ClassFilter{Active: &active}

	// An empty unit or course in the filter means "no condition" at the
	// repository, so a non-admin missing their home scope must get an
	// empty listing, never a widened one.
	switch principal.Role {
	case models.RoleAdmin:
	case models.RoleInstructor:
		if principal.HomeUnit() == "" || principal.HomeCourse() == "" {
			return nil, nil
		}
		filter.ResponsibleID = principal.UserID
		filter.UnitID = principal.HomeUnit()
		filter.CourseID = principal.HomeCourse()
	case models.RolePedagogue:
		if principal.HomeUnit() == "" {
			return nil, nil
		}
		kind := models.ClassKindExtension
		filter.Kind = &kind
		filter.UnitID = principal.HomeUnit()
		filter.CourseID = principal.HomeCourse()
	case models.RoleMonitor:
		if principal.HomeUnit() == "" {
			return nil, nil
		}
		filter.UnitID = principal.HomeUnit()
		filter.CourseID = principal.HomeCourse()
	default:
		return nil, nil
	}

	filter.PageSize = 100
	var all []models.Class
	for page := 1; ; page++ {
		filter.Page = page
		classes, total, err := s.classes.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
		}
		all = append(all, classes...)
		if len(all) >= total || len(classes) == 0 {
			break
		}
	}
	return all, nil
}

// VisibleStudents returns the students the principal may see. Admin
// gets the full filtered listing, withdrawn students included only on
// request; instructors get the union of their taught rosters;
// pedagogues and monitors get the rosters of every active class in
// their home unit, the course filter deliberately ignored for breadth.
func (s *ScopeService) VisibleStudents(ctx context.Context, principal models.Principal, filter models.StudentFilter) ([]models.Student, error) {
	switch principal.Role {
	case models.RoleAdmin:
		students, _, err := s.students.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		return students, nil

	case models.RoleInstructor:
		if principal.HomeUnit() == "" || principal.HomeCourse() == "" {
			return nil, nil
		}
		active := true
		classFilter := models.ClassFilter{
			Active:        &active,
			ResponsibleID: principal.UserID,
			UnitID:        principal.HomeUnit(),
			CourseID:      principal.HomeCourse(),
			PageSize:      100,
		}
		return s.rosterUnion(ctx, classFilter)

	case models.RolePedagogue, models.RoleMonitor:
		// Same guard as VisibleClasses: an unset home unit must not
		// collapse into an unfiltered roster listing.
		if principal.HomeUnit() == "" {
			return nil, nil
		}
		active := true
		classFilter := models.ClassFilter{
			Active:   &active,
			UnitID:   principal.HomeUnit(),
			PageSize: 100,
		}
		return s.rosterUnion(ctx, classFilter)
	}
	return nil, nil
}

// CanManageStudent reports whether the principal may mutate records of
// the given student, such as justifications and withdrawals.
func (s *ScopeService) CanManageStudent(ctx context.Context, principal models.Principal, studentID string) (bool, error) {
	if principal.IsAdmin() {
		return true, nil
	}
	classes, err := s.classes.ListContainingStudent(ctx, studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student classes")
	}
	for _, class := range classes {
		switch principal.Role {
		case models.RoleInstructor:
			if class.ResponsibleID == principal.UserID {
				return true, nil
			}
		case models.RolePedagogue:
			if class.UnitID == principal.HomeUnit() {
				if principal.HomeCourse() == "" || class.CourseID == principal.HomeCourse() {
					return true, nil
				}
			}
		case models.RoleMonitor:
			if class.MonitorID != nil && *class.MonitorID == principal.UserID {
				return true, nil
			}
		}
	}
	return false, nil
}

// CanRegisterStudent reports whether the principal may create student
// records. Monitors never can; instructors and pedagogues need a full
// home scope.
func (s *ScopeService) CanRegisterStudent(principal models.Principal) bool {
	switch principal.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstructor, models.RolePedagogue:
		return principal.HomeUnit() != "" && principal.HomeCourse() != ""
	}
	return false
}

// CanManageClass reports whether the principal may mutate the class,
// including filing its attendance.
func (s *ScopeService) CanManageClass(principal models.Principal, class models.Class) bool {
	switch principal.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstructor:
		return class.ResponsibleID == principal.UserID
	case models.RolePedagogue:
		return class.UnitID == principal.HomeUnit() && class.CourseID == principal.HomeCourse()
	}
	return false
}

// ClassByID loads a class for downstream authorization checks.
func (s *ScopeService) ClassByID(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// rosterUnion loads the classes matching the filter and returns the
// deduplicated, non-withdrawn students across their rosters. Roster
// entries pointing at missing students are logged and skipped so one
// broken reference never fails the whole listing.
func (s *ScopeService) rosterUnion(ctx context.Context, filter models.ClassFilter) ([]models.Student, error) {
	var ids []string
	seen := make(map[string]bool)
	fetched := 0
	for page := 1; ; page++ {
		filter.Page = page
		classes, total, err := s.classes.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
		}
		for _, class := range classes {
			for _, id := range class.StudentIDs {
				if id == "" || seen[id] {
					continue
				}
				seen[id] = true
				ids = append(ids, id)
			}
		}
		fetched += len(classes)
		if fetched >= total || len(classes) == 0 {
			break
		}
	}

	students, err := s.students.ListByIDs(ctx, ids, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if len(students) < len(ids) {
		s.logger.Warn("roster references skipped",
			zap.Int("referenced", len(ids)),
			zap.Int("resolved", len(students)))
	}
	return students, nil
}
