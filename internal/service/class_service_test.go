package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeClassRepo struct {
	classes  map[string]*models.Class
	enrolled map[string]bool
	deleted  []string
}

func (f *fakeClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if c, ok := f.classes[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassRepo) Create(_ context.Context, class *models.Class) error {
	class.ID = "cls-new"
	f.classes[class.ID] = class
	return nil
}

func (f *fakeClassRepo) Update(_ context.Context, class *models.Class) error {
	f.classes[class.ID] = class
	return nil
}

func (f *fakeClassRepo) AddStudent(_ context.Context, classID, studentID string) (bool, error) {
	key := classID + "/" + studentID
	if f.enrolled[key] {
		return false, nil
	}
	f.enrolled[key] = true
	return true, nil
}

func (f *fakeClassRepo) RemoveStudent(_ context.Context, classID, studentID string) error {
	delete(f.enrolled, classID+"/"+studentID)
	return nil
}

func (f *fakeClassRepo) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeClassUserRepo struct {
	users map[string]*models.User
}

func (f *fakeClassUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type fakeClassStudentRepo struct {
	students map[string]*models.Student
}

func (f *fakeClassStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := f.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

type classScopeStub struct{ allow bool }

func (s classScopeStub) VisibleClasses(_ context.Context, _ models.Principal) ([]models.Class, error) {
	return nil, nil
}

func (s classScopeStub) CanManageClass(_ models.Principal, _ models.Class) bool { return s.allow }

func classFixture() (*ClassService, *fakeClassRepo) {
	repo := &fakeClassRepo{
		classes: map[string]*models.Class{
			"cls-1": {
				ID:            "cls-1",
				Name:          "Turma A",
				UnitID:        "u1",
				CourseID:      "crs1",
				ResponsibleID: "inst-1",
				Kind:          models.ClassKindRegular,
				TotalSeats:    20,
				OccupiedSeats: 5,
				StudentIDs:    pq.StringArray{"s1"},
				Active:        true,
			},
		},
		enrolled: map[string]bool{"cls-1/s1": true},
	}
	users := &fakeClassUserRepo{users: map[string]*models.User{
		"inst-1":  {ID: "inst-1", Role: models.RoleInstructor},
		"ped-1":   {ID: "ped-1", Role: models.RolePedagogue},
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
	}}
	students := &fakeClassStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", Status: models.StudentStatusActive},
		"s2": {ID: "s2", Status: models.StudentStatusActive},
		"s3": {ID: "s3", Status: models.StudentStatusWithdrawn},
	}}
	svc := NewClassService(repo, users, students, classScopeStub{allow: true}, nil, zap.NewNop())
	return svc, repo
}

func validCreateClassRequest() CreateClassRequest {
	return CreateClassRequest{
		Name:       "Turma B",
		UnitID:     "u1",
		CourseID:   "crs1",
		StartDate:  "2026-02-02",
		EndDate:    "2026-06-30",
		StartTime:  "08:00",
		EndTime:    "12:00",
		TotalSeats: 25,
	}
}

func TestCreateClassMonitorForbidden(t *testing.T) {
	svc, _ := classFixture()
	monitor := models.Principal{UserID: "mon-1", Role: models.RoleMonitor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}

	_, err := svc.Create(context.Background(), monitor, validCreateClassRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestCreateClassAdminRequiresResponsible(t *testing.T) {
	svc, _ := classFixture()
	admin := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := svc.Create(context.Background(), admin, validCreateClassRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))

	req := validCreateClassRequest()
	req.ResponsibleID = strPtr("inst-1")
	class, err := svc.Create(context.Background(), admin, req)
	require.NoError(t, err)
	assert.Equal(t, "inst-1", class.ResponsibleID)
	assert.Equal(t, models.ClassKindRegular, class.Kind)
}

func TestCreateClassNonAdminPinnedToHomeScope(t *testing.T) {
	svc, _ := classFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}

	req := validCreateClassRequest()
	req.UnitID = "u2"
	_, err := svc.Create(context.Background(), inst, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	class, err := svc.Create(context.Background(), inst, validCreateClassRequest())
	require.NoError(t, err)
	assert.Equal(t, "inst-1", class.ResponsibleID)
}

func TestCreateClassKindFollowsResponsibleRole(t *testing.T) {
	svc, _ := classFixture()
	ped := models.Principal{UserID: "ped-1", Role: models.RolePedagogue, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}

	class, err := svc.Create(context.Background(), ped, validCreateClassRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ClassKindExtension, class.Kind)
}

func TestCreateClassRejectsAdminResponsible(t *testing.T) {
	svc, _ := classFixture()
	admin := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}

	req := validCreateClassRequest()
	req.ResponsibleID = strPtr("admin-1")
	_, err := svc.Create(context.Background(), admin, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestCreateClassEndBeforeStart(t *testing.T) {
	svc, _ := classFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}

	req := validCreateClassRequest()
	req.StartDate = "2026-06-30"
	req.EndDate = "2026-02-02"
	_, err := svc.Create(context.Background(), inst, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestUpdateClassSeatCountBelowEnrollment(t *testing.T) {
	svc, _ := classFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1"), CourseID: strPtr("crs1")}

	seats := 3
	_, err := svc.Update(context.Background(), inst, "cls-1", UpdateClassRequest{TotalSeats: &seats})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	seats = 30
	class, err := svc.Update(context.Background(), inst, "cls-1", UpdateClassRequest{TotalSeats: &seats})
	require.NoError(t, err)
	assert.Equal(t, 30, class.TotalSeats)
}

func TestEnrollWithdrawnStudent(t *testing.T) {
	svc, _ := classFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	err := svc.Enroll(context.Background(), inst, "cls-1", "s3")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestEnrollDuplicate(t *testing.T) {
	svc, repo := classFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	require.NoError(t, svc.Enroll(context.Background(), inst, "cls-1", "s2"))
	assert.True(t, repo.enrolled["cls-1/s2"])

	err := svc.Enroll(context.Background(), inst, "cls-1", "s2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestUnenrollNotOnRoster(t *testing.T) {
	svc, repo := classFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	err := svc.Unenroll(context.Background(), inst, "cls-1", "s2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.Unenroll(context.Background(), inst, "cls-1", "s1"))
	assert.False(t, repo.enrolled["cls-1/s1"])
}

func TestDeleteClassOutsideScope(t *testing.T) {
	repo := &fakeClassRepo{classes: map[string]*models.Class{
		"cls-1": {ID: "cls-1", UnitID: "u1", Kind: models.ClassKindRegular},
	}, enrolled: map[string]bool{}}
	svc := NewClassService(repo, &fakeClassUserRepo{}, &fakeClassStudentRepo{}, classScopeStub{allow: false}, nil, zap.NewNop())
	inst := models.Principal{UserID: "inst-2", Role: models.RoleInstructor, UnitID: strPtr("u2")}

	err := svc.Delete(context.Background(), inst, "cls-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.deleted)
}
