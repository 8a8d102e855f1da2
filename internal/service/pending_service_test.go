package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
)

type staticClassLister struct {
	classes []models.Class
}

func (s staticClassLister) VisibleClasses(_ context.Context, _ models.Principal) ([]models.Class, error) {
	return s.classes, nil
}

type fakeCourseRepo struct {
	courses map[string]models.Course
}

func (f fakeCourseRepo) FindByIDs(_ context.Context, ids []string) (map[string]models.Course, error) {
	out := make(map[string]models.Course)
	for _, id := range ids {
		if c, ok := f.courses[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeFiledDatesRepo struct {
	filed map[string]map[string]bool
}

func (f fakeFiledDatesRepo) FiledDates(_ context.Context, classID string, _, _ time.Time) (map[string]bool, error) {
	return f.filed[classID], nil
}

type fakeRosterRepo struct{}

func (fakeRosterRepo) ListByIDs(_ context.Context, ids []string, _ bool) ([]models.Student, error) {
	out := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Student{ID: id, FullName: "Student " + id})
	}
	return out, nil
}

// Wednesday 2024-01-17. The course runs Monday through Thursday, the
// class window covers all of January, and only Monday's call was filed.
func TestPendingForMidweekGaps(t *testing.T) {
	class := models.Class{
		ID:         "c1",
		Name:       "Turma A",
		CourseID:   "crs1",
		StartDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		StudentIDs: []string{"s1", "s2"},
		TotalSeats: 30,
	}
	svc := NewPendingService(
		staticClassLister{classes: []models.Class{class}},
		fakeCourseRepo{courses: map[string]models.Course{
			"crs1": {ID: "crs1", ClassDays: []string{"monday", "tuesday", "wednesday", "thursday"}},
		}},
		fakeFiledDatesRepo{filed: map[string]map[string]bool{
			"c1": {"2024-01-15": true},
		}},
		fakeRosterRepo{},
		nil, 0, zap.NewNop(),
	)
	svc.now = func() time.Time { return time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC) }

	pending, err := svc.PendingFor(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// Today's gap outranks yesterday's.
	assert.Equal(t, models.UrgencyUrgent, pending[0].Urgency)
	assert.Equal(t, 0, pending[0].DaysAgo)
	assert.Equal(t, "2024-01-17", pending[0].Date.Format("2006-01-02"))

	assert.Equal(t, models.UrgencyImportant, pending[1].Urgency)
	assert.Equal(t, 1, pending[1].DaysAgo)
	assert.Equal(t, "2024-01-16", pending[1].Date.Format("2006-01-02"))

	assert.Len(t, pending[0].Students, 2)
}

func TestPendingSkipsUnscheduledWeekdays(t *testing.T) {
	class := models.Class{
		ID:        "c1",
		CourseID:  "crs1",
		StartDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	svc := NewPendingService(
		staticClassLister{classes: []models.Class{class}},
		fakeCourseRepo{courses: map[string]models.Course{
			"crs1": {ID: "crs1", ClassDays: []string{"friday"}},
		}},
		fakeFiledDatesRepo{},
		fakeRosterRepo{},
		nil, 0, zap.NewNop(),
	)
	svc.now = func() time.Time { return time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC) }

	pending, err := svc.PendingFor(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingRespectsClassWindow(t *testing.T) {
	// Class starts tomorrow; nothing can be pending yet.
	class := models.Class{
		ID:        "c1",
		CourseID:  "crs1",
		StartDate: time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	svc := NewPendingService(
		staticClassLister{classes: []models.Class{class}},
		fakeCourseRepo{courses: map[string]models.Course{
			"crs1": {ID: "crs1", ClassDays: []string{"monday", "tuesday", "wednesday", "thursday"}},
		}},
		fakeFiledDatesRepo{},
		fakeRosterRepo{},
		nil, 0, zap.NewNop(),
	)
	svc.now = func() time.Time { return time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC) }

	pending, err := svc.PendingFor(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingUnknownCourseFallsBackToWeekdays(t *testing.T) {
	// Course missing from the catalogue: Mon-Fri fallback applies, so
	// Wednesday and Tuesday still surface.
	class := models.Class{
		ID:        "c1",
		CourseID:  "ghost",
		StartDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	svc := NewPendingService(
		staticClassLister{classes: []models.Class{class}},
		fakeCourseRepo{},
		fakeFiledDatesRepo{},
		fakeRosterRepo{},
		nil, 0, zap.NewNop(),
	)
	svc.now = func() time.Time { return time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC) }

	pending, err := svc.PendingFor(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor})
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}
