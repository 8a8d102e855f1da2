package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
)

type fakeScopeClassRepo struct {
	classes []models.Class
}

func (f *fakeScopeClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	for i := range f.classes {
		if f.classes[i].ID == id {
			return &f.classes[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeScopeClassRepo) List(_ context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var out []models.Class
	for _, c := range f.classes {
		if filter.Active != nil && c.Active != *filter.Active {
			continue
		}
		if filter.ResponsibleID != "" && c.ResponsibleID != filter.ResponsibleID {
			continue
		}
		if filter.UnitID != "" && c.UnitID != filter.UnitID {
			continue
		}
		if filter.CourseID != "" && c.CourseID != filter.CourseID {
			continue
		}
		if filter.Kind != nil && c.Kind != *filter.Kind {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeScopeClassRepo) ListContainingStudent(_ context.Context, studentID string) ([]models.Class, error) {
	var out []models.Class
	for _, c := range f.classes {
		if c.ContainsStudent(studentID) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeScopeStudentRepo struct {
	students map[string]models.Student
}

func (f *fakeScopeStudentRepo) List(_ context.Context, _ models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, st := range f.students {
		out = append(out, st)
	}
	return out, len(out), nil
}

func (f *fakeScopeStudentRepo) ListByIDs(_ context.Context, ids []string, includeWithdrawn bool) ([]models.Student, error) {
	var out []models.Student
	for _, id := range ids {
		st, ok := f.students[id]
		if !ok {
			continue
		}
		if !includeWithdrawn && st.Status == models.StudentStatusWithdrawn {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func scopeFixture() (*ScopeService, *fakeScopeClassRepo) {
	monitorID := "monitor-1"
	classes := &fakeScopeClassRepo{classes: []models.Class{
		{ID: "c1", Name: "Turma A", UnitID: "u1", CourseID: "crs1", ResponsibleID: "inst-1", Kind: models.ClassKindRegular, Active: true, StudentIDs: []string{"s1", "s2"}, MonitorID: &monitorID},
		{ID: "c2", Name: "Turma B", UnitID: "u1", CourseID: "crs1", ResponsibleID: "ped-1", Kind: models.ClassKindExtension, Active: true, StudentIDs: []string{"s2", "s3"}},
		{ID: "c3", Name: "Turma C", UnitID: "u2", CourseID: "crs2", ResponsibleID: "inst-2", Kind: models.ClassKindRegular, Active: true, StudentIDs: []string{"s4"}},
		{ID: "c4", Name: "Turma D", UnitID: "u1", CourseID: "crs1", ResponsibleID: "inst-1", Kind: models.ClassKindRegular, Active: false, StudentIDs: []string{"s5"}},
	}}
	students := &fakeScopeStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Ana", Status: models.StudentStatusActive},
		"s2": {ID: "s2", FullName: "Bruno", Status: models.StudentStatusActive},
		"s3": {ID: "s3", FullName: "Clara", Status: models.StudentStatusWithdrawn},
		"s4": {ID: "s4", FullName: "Davi", Status: models.StudentStatusActive},
	}}
	return NewScopeService(classes, students, zap.NewNop()), classes
}

func TestVisibleClassesByRole(t *testing.T) {
	svc, _ := scopeFixture()
	ctx := context.Background()

	cases := []struct {
		name      string
		principal models.Principal
		wantIDs   []string
	}{
		{
			name:      "admin sees every active class",
			principal: models.Principal{UserID: "adm", Role: models.RoleAdmin},
			wantIDs:   []string{"c1", "c2", "c3"},
		},
		{
			name:      "instructor sees only own taught classes",
			principal: models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")},
			wantIDs:   []string{"c1"},
		},
		{
			name:      "pedagogue sees only extension classes in home scope",
			principal: models.Principal{UserID: "ped-1", Role: models.RolePedagogue, UnitID: strPtr("u1"), CourseID: strPtr("crs1")},
			wantIDs:   []string{"c2"},
		},
		{
			name:      "monitor sees any kind in home scope",
			principal: models.Principal{UserID: "monitor-1", Role: models.RoleMonitor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")},
			wantIDs:   []string{"c1", "c2"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classes, err := svc.VisibleClasses(ctx, tc.principal)
			require.NoError(t, err)
			var ids []string
			for _, c := range classes {
				ids = append(ids, c.ID)
			}
			assert.ElementsMatch(t, tc.wantIDs, ids)
		})
	}
}

func TestVisibleClassesWithoutHomeScope(t *testing.T) {
	svc, _ := scopeFixture()
	ctx := context.Background()

	// A missing home unit (or course, for instructors) must yield an
	// empty listing, not an unfiltered one.
	cases := []struct {
		name      string
		principal models.Principal
	}{
		{"pedagogue without unit", models.Principal{UserID: "ped-9", Role: models.RolePedagogue}},
		{"monitor without unit", models.Principal{UserID: "mon-9", Role: models.RoleMonitor}},
		{"instructor without course", models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1")}},
		{"instructor without unit", models.Principal{UserID: "inst-1", Role: models.RoleInstructor, CourseID: strPtr("crs1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classes, err := svc.VisibleClasses(ctx, tc.principal)
			require.NoError(t, err)
			assert.Empty(t, classes)
		})
	}
}

func TestVisibleStudentsWithoutHomeScope(t *testing.T) {
	svc, _ := scopeFixture()
	ctx := context.Background()

	ped := models.Principal{UserID: "ped-9", Role: models.RolePedagogue}
	students, err := svc.VisibleStudents(ctx, ped, models.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, students)

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1")}
	students, err = svc.VisibleStudents(ctx, inst, models.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestVisibleStudentsRosterUnion(t *testing.T) {
	svc, _ := scopeFixture()
	ctx := context.Background()

	// Pedagogue: whole home unit, course ignored, withdrawn excluded,
	// shared students deduplicated.
	ped := models.Principal{UserID: "ped-1", Role: models.RolePedagogue, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}
	students, err := svc.VisibleStudents(ctx, ped, models.StudentFilter{})
	require.NoError(t, err)
	var ids []string
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestVisibleStudentsInstructor(t *testing.T) {
	svc, _ := scopeFixture()
	ctx := context.Background()

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}
	students, err := svc.VisibleStudents(ctx, inst, models.StudentFilter{})
	require.NoError(t, err)
	var ids []string
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestCanManageClassMatrix(t *testing.T) {
	svc, repo := scopeFixture()
	regular := repo.classes[0]
	extension := repo.classes[1]
	other := repo.classes[2]

	admin := models.Principal{UserID: "adm", Role: models.RoleAdmin}
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}
	ped := models.Principal{UserID: "ped-1", Role: models.RolePedagogue, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}
	monitor := models.Principal{UserID: "monitor-1", Role: models.RoleMonitor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}

	assert.True(t, svc.CanManageClass(admin, other))
	assert.True(t, svc.CanManageClass(inst, regular))
	assert.False(t, svc.CanManageClass(inst, extension))
	assert.True(t, svc.CanManageClass(ped, extension))
	assert.False(t, svc.CanManageClass(ped, other))
	assert.False(t, svc.CanManageClass(monitor, regular))
}

func TestCanRegisterStudent(t *testing.T) {
	svc, _ := scopeFixture()

	assert.True(t, svc.CanRegisterStudent(models.Principal{Role: models.RoleAdmin}))
	assert.True(t, svc.CanRegisterStudent(models.Principal{Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}))
	assert.False(t, svc.CanRegisterStudent(models.Principal{Role: models.RoleInstructor, UnitID: strPtr("u1")}))
	assert.False(t, svc.CanRegisterStudent(models.Principal{Role: models.RoleMonitor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}))
}

func TestCanManageStudent(t *testing.T) {
	svc, _ := scopeFixture()
	ctx := context.Background()

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}
	allowed, err := svc.CanManageStudent(ctx, inst, "s1")
	require.NoError(t, err)
	assert.True(t, allowed)

	// s4 sits in another instructor's class.
	allowed, err = svc.CanManageStudent(ctx, inst, "s4")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Monitor only manages students of the class they monitor.
	monitor := models.Principal{UserID: "monitor-1", Role: models.RoleMonitor, UnitID: strPtr("u1")}
	allowed, err = svc.CanManageStudent(ctx, monitor, "s1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.CanManageStudent(ctx, monitor, "s4")
	require.NoError(t, err)
	assert.False(t, allowed)
}
