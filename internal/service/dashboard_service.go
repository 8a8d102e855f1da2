package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

const dashboardCacheTTL = 5 * time.Minute

type dashboardStudentRepository interface {
	Count(ctx context.Context) (int, error)
}

type dashboardClassRepository interface {
	Count(ctx context.Context) (int, error)
}

type dashboardAttendanceRepository interface {
	CountToday(ctx context.Context, date time.Time, classIDs []string) (int, error)
}

type dashboardScope interface {
	VisibleClasses(ctx context.Context, principal models.Principal) ([]models.Class, error)
	VisibleStudents(ctx context.Context, principal models.Principal, filter models.StudentFilter) ([]models.Student, error)
}

type pendingLister interface {
	PendingFor(ctx context.Context, principal models.Principal) ([]models.PendingAttendance, error)
}

// Dashboard is the role-scoped counter snapshot shown on login.
type Dashboard struct {
	Role            models.UserRole `json:"role"`
	TotalStudents   int             `json:"total_students"`
	TotalClasses    int             `json:"total_classes"`
	AttendanceToday int             `json:"attendance_today"`
	PendingCalls    int             `json:"pending_calls"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// DashboardService aggregates the counters for the landing screen.
// Results are cached per user because the underlying roster unions are
// the most expensive queries in the system.
type DashboardService struct {
	students    dashboardStudentRepository
	classes     dashboardClassRepository
	attendances dashboardAttendanceRepository
	scope       dashboardScope
	pending     pendingLister
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(students dashboardStudentRepository, classes dashboardClassRepository, attendances dashboardAttendanceRepository, scope dashboardScope, pending pendingLister, cache *CacheService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:    students,
		classes:     classes,
		attendances: attendances,
		scope:       scope,
		pending:     pending,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary builds the dashboard for the caller. Admins get institution
// wide totals; everyone else only what their scope reaches.
func (s *DashboardService) Summary(ctx context.Context, principal models.Principal) (*Dashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:user:%s", principal.UserID)
	var cached Dashboard
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	dash := &Dashboard{Role: principal.Role, GeneratedAt: s.now().UTC()}
	today := dates.Truncate(s.now().UTC())

	if principal.IsAdmin() {
		total, err := s.students.Count(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
		}
		dash.TotalStudents = total

		total, err = s.classes.Count(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
		}
		dash.TotalClasses = total

		filed, err := s.attendances.CountToday(ctx, today, nil)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
		}
		dash.AttendanceToday = filed
	} else {
		students, err := s.scope.VisibleStudents(ctx, principal, models.StudentFilter{})
		if err != nil {
			return nil, err
		}
		dash.TotalStudents = len(students)

		classes, err := s.scope.VisibleClasses(ctx, principal)
		if err != nil {
			return nil, err
		}
		dash.TotalClasses = len(classes)

		if len(classes) > 0 {
			ids := make([]string, 0, len(classes))
			for _, class := range classes {
				ids = append(ids, class.ID)
			}
			filed, err := s.attendances.CountToday(ctx, today, ids)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
			}
			dash.AttendanceToday = filed
		}
	}

	pending, err := s.pending.PendingFor(ctx, principal)
	if err != nil {
		// Counter stays at zero when pending lookup fails.
		s.logger.Warn("pending count unavailable", zap.String("user_id", principal.UserID), zap.Error(err))
	} else {
		dash.PendingCalls = len(pending)
	}

	if err := s.cache.Set(ctx, cacheKey, dash, dashboardCacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return dash, nil
}

// Invalidate drops the cached dashboard of one user, called after
// attendance submissions and roster changes.
func (s *DashboardService) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dashboard:user:%s", userID)); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
