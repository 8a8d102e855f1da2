package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

// pendingLookbackDays bounds how far back missed calls are resurfaced.
// Older gaps stay silent so staff are not flooded with stale alerts.
const pendingLookbackDays = 2

type visibleClassLister interface {
	VisibleClasses(ctx context.Context, principal models.Principal) ([]models.Class, error)
}

type pendingCourseRepository interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
}

type pendingAttendanceRepository interface {
	FiledDates(ctx context.Context, classID string, from, to time.Time) (map[string]bool, error)
}

type pendingStudentRepository interface {
	ListByIDs(ctx context.Context, ids []string, includeWithdrawn bool) ([]models.Student, error)
}

// PendingService detects which recent class days still need an
// attendance call, ranked most time-critical first.
type PendingService struct {
	scope      visibleClassLister
	courses    pendingCourseRepository
	attendance pendingAttendanceRepository
	students   pendingStudentRepository
	cache      *CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewPendingService constructs a PendingService. Cache may be nil.
func NewPendingService(scope visibleClassLister, courses pendingCourseRepository, attendance pendingAttendanceRepository, students pendingStudentRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *PendingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &PendingService{
		scope:      scope,
		courses:    courses,
		attendance: attendance,
		students:   students,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// PendingFor walks the last three calendar days of every class visible
// to the principal and emits an entry for each day that required a call
// and has none. Days outside the class window or off the course's
// scheduled weekdays are skipped.
func (s *PendingService) PendingFor(ctx context.Context, principal models.Principal) ([]models.PendingAttendance, error) {
	cacheKey := fmt.Sprintf("pending:user:%s", principal.UserID)
	if s.cache.Enabled() {
		var cached []models.PendingAttendance
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	classes, err := s.scope.VisibleClasses(ctx, principal)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return []models.PendingAttendance{}, nil
	}

	courseIDs := make([]string, 0, len(classes))
	seen := make(map[string]bool)
	for _, class := range classes {
		if !seen[class.CourseID] {
			seen[class.CourseID] = true
			courseIDs = append(courseIDs, class.CourseID)
		}
	}
	courses, err := s.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	today := dates.Truncate(s.now().UTC())
	oldest := today.AddDate(0, 0, -pendingLookbackDays)

	pending := make([]models.PendingAttendance, 0)
	for _, class := range classes {
		scheduled := scheduledDaySet(courses, class.CourseID)

		filed, err := s.attendance.FiledDates(ctx, class.ID, oldest, today)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filed dates")
		}

		var roster []models.StudentRef
		for offset := 0; offset <= pendingLookbackDays; offset++ {
			day := today.AddDate(0, 0, -offset)
			if day.Before(dates.Truncate(class.StartDate)) || day.After(dates.Truncate(class.EndDate)) {
				continue
			}
			if !scheduled[dates.WeekdayName(day.Weekday())] {
				continue
			}
			if filed[day.Format(dates.DayOnly)] {
				continue
			}

			if roster == nil {
				roster, err = s.loadRoster(ctx, class)
				if err != nil {
					return nil, err
				}
			}

			urgency, message := urgencyFor(offset)
			pending = append(pending, models.PendingAttendance{
				ClassID:    class.ID,
				ClassName:  class.Name,
				Date:       day,
				DaysAgo:    offset,
				Urgency:    urgency,
				Message:    message,
				Students:   roster,
				TotalSeats: class.TotalSeats,
				StartTime:  class.StartTime,
				EndTime:    class.EndTime,
			})
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Urgency.Rank() != pending[j].Urgency.Rank() {
			return pending[i].Urgency.Rank() < pending[j].Urgency.Rank()
		}
		return pending[i].DaysAgo < pending[j].DaysAgo
	})

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, pending, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache pending calls", zap.Error(err))
		}
	}
	return pending, nil
}

func (s *PendingService) loadRoster(ctx context.Context, class models.Class) ([]models.StudentRef, error) {
	students, err := s.students.ListByIDs(ctx, class.StudentIDs, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	refs := make([]models.StudentRef, 0, len(students))
	for _, st := range students {
		refs = append(refs, models.StudentRef{ID: st.ID, FullName: st.FullName})
	}
	return refs, nil
}

func scheduledDaySet(courses map[string]models.Course, courseID string) map[string]bool {
	course, ok := courses[courseID]
	if !ok {
		// Unknown course falls back to Mon-Fri, same as a course with
		// no declared schedule.
		course = models.Course{}
	}
	set := make(map[string]bool)
	for _, day := range course.ScheduledDays() {
		set[day] = true
	}
	return set
}

func urgencyFor(daysAgo int) (models.UrgencyTier, string) {
	switch daysAgo {
	case 0:
		return models.UrgencyUrgent, "Today's call has not been filed yet"
	case 1:
		return models.UrgencyImportant, "Yesterday's call is missing"
	default:
		return models.UrgencyPending, fmt.Sprintf("Call from %d days ago is missing", daysAgo)
	}
}
