package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeImportStudentRepo struct {
	byCPF   map[string]*models.Student
	nextID  int
	updated int
}

func newFakeImportStudentRepo() *fakeImportStudentRepo {
	return &fakeImportStudentRepo{byCPF: make(map[string]*models.Student)}
}

func (f *fakeImportStudentRepo) FindByCPF(_ context.Context, cpf string) (*models.Student, error) {
	if st, ok := f.byCPF[cpf]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeImportStudentRepo) Create(_ context.Context, student *models.Student) error {
	f.nextID++
	student.ID = fmt.Sprintf("st-%d", f.nextID)
	f.byCPF[student.CPF] = student
	return nil
}

func (f *fakeImportStudentRepo) Update(_ context.Context, student *models.Student) error {
	f.updated++
	f.byCPF[student.CPF] = student
	return nil
}

type fakeImportClassRepo struct {
	class    *models.Class
	enrolled map[string]bool
}

func (f *fakeImportClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if f.class != nil && f.class.ID == id {
		return f.class, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeImportClassRepo) AddStudent(_ context.Context, _, studentID string) (bool, error) {
	if f.enrolled == nil {
		f.enrolled = make(map[string]bool)
	}
	if f.enrolled[studentID] {
		return false, nil
	}
	f.enrolled[studentID] = true
	return true, nil
}

func importPrincipal() models.Principal {
	return models.Principal{
		UserID:   "inst-1",
		FullName: "Prof Silva",
		Role:     models.RoleInstructor,
		UnitID:   strPtr("u1"),
		CourseID: strPtr("crs1"),
	}
}

func TestImportMixedRows(t *testing.T) {
	students := newFakeImportStudentRepo()
	students.byCPF["11144477735"] = &models.Student{ID: "st-existing", CPF: "11144477735", FullName: "Bruno Souza"}

	svc := NewImportService(students, &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	data := []byte("nome,cpf\n" +
		"Ana Lima,529.982.247-25\n" +
		"Bruno Souza,111.444.777-35\n" +
		"Carla Dias,123.456.789-00\n")

	summary, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data, Filename: "alunos.csv"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.ErrorCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 4, summary.Errors[0].Row)

	// Provenance is stamped from the importer.
	created := students.byCPF["52998224725"]
	require.NotNil(t, created)
	assert.Equal(t, "inst-1", created.CreatedByID)
	assert.Equal(t, models.RoleInstructor, created.CreatedByRole)
	require.NotNil(t, created.CourseID)
	assert.Equal(t, "crs1", *created.CourseID)
}

func TestImportIsIdempotent(t *testing.T) {
	students := newFakeImportStudentRepo()
	svc := NewImportService(students, &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	data := []byte("nome,cpf\nAna Lima,52998224725\nBruno Souza,11144477735\n")

	first, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.ErrorCount)
}

func TestImportUpdateExisting(t *testing.T) {
	students := newFakeImportStudentRepo()
	students.byCPF["52998224725"] = &models.Student{ID: "st-1", CPF: "52998224725", FullName: "Ana"}

	svc := NewImportService(students, &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	data := []byte("nome,cpf,email\nAna Lima,52998224725,ana@example.org\n")
	summary, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data, UpdateExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	updated := students.byCPF["52998224725"]
	assert.Equal(t, "Ana Lima", updated.FullName)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "ana@example.org", *updated.Email)
}

func TestImportSemicolonAndLegacyEncoding(t *testing.T) {
	students := newFakeImportStudentRepo()
	svc := NewImportService(students, &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	// windows-1252 export: é is a single 0xE9 byte.
	data := append([]byte("nome;cpf\nJos"), 0xE9)
	data = append(data, []byte(" Santos;52998224725\n")...)

	summary, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, "José Santos", students.byCPF["52998224725"].FullName)
}

func TestImportHeaderAliases(t *testing.T) {
	students := newFakeImportStudentRepo()
	svc := NewImportService(students, &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	data := []byte("Nome Completo,CPF do Aluno,Data de Nascimento\nAna Lima,52998224725,15/03/2005\n")
	summary, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	created := students.byCPF["52998224725"]
	require.NotNil(t, created.BirthDate)
	assert.Equal(t, "2005-03-15", created.BirthDate.Format("2006-01-02"))
}

func TestImportEnrollsIntoTargetClass(t *testing.T) {
	students := newFakeImportStudentRepo()
	classes := &fakeImportClassRepo{class: &models.Class{ID: "c1", UnitID: "u1", CourseID: "crs1", ResponsibleID: "inst-1", Active: true}}
	svc := NewImportService(students, classes, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	data := []byte("nome,cpf\nAna Lima,52998224725\n")
	summary, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data, ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enrolled)
}

func TestImportRowLimitKeepsCompletedWork(t *testing.T) {
	students := newFakeImportStudentRepo()
	svc := NewImportService(students, &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 2, 0)

	data := []byte("nome,cpf\n" +
		"Ana Lima,529.982.247-25\n" +
		"Bruno Souza,111.444.777-35\n" +
		"Carla Dias,390.533.447-05\n")

	summary, err := svc.Import(context.Background(), importPrincipal(), models.ImportRequest{Data: data})
	require.NoError(t, err)

	// The first two rows ran and stay reported; the tail is flagged,
	// not silently dropped.
	assert.Equal(t, 2, summary.TotalRows)
	assert.Equal(t, 2, summary.Inserted)
	assert.True(t, summary.RowsTruncated)
	assert.NotContains(t, students.byCPF, "39053344705")
}

func TestImportMonitorForbidden(t *testing.T) {
	svc := NewImportService(newFakeImportStudentRepo(), &fakeImportClassRepo{}, allowAllScope{allow: true}, zap.NewNop(), 0, 0)

	_, err := svc.Import(context.Background(), models.Principal{UserID: "mon-1", Role: models.RoleMonitor}, models.ImportRequest{Data: []byte("nome,cpf\n")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
