package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeReportJobRepo struct {
	jobs map[string]*models.ReportJob
}

func (f *fakeReportJobRepo) Create(_ context.Context, job *models.ReportJob) error {
	job.ID = "job-new"
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeReportJobRepo) FindByID(_ context.Context, id string) (*models.ReportJob, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeReportJobRepo) ListByUser(_ context.Context, userID string, _ int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, j := range f.jobs {
		if j.RequestedBy == userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeReportJobRepo) UpdateProgress(_ context.Context, id string, progress int) error {
	f.jobs[id].Progress = progress
	return nil
}

func (f *fakeReportJobRepo) MarkCompleted(_ context.Context, id, filePath string) error {
	f.jobs[id].Status = models.ReportJobCompleted
	f.jobs[id].FilePath = &filePath
	return nil
}

func (f *fakeReportJobRepo) MarkFailed(_ context.Context, id, reason string) error {
	f.jobs[id].Status = models.ReportJobFailed
	f.jobs[id].Error = &reason
	return nil
}

type fakeReportAttendances struct{}

func (fakeReportAttendances) ListForReport(_ context.Context, _ []string, _, _ *time.Time) ([]models.Attendance, error) {
	return nil, nil
}

type fakeReportStudents struct{}

func (fakeReportStudents) ListByIDs(_ context.Context, _ []string, _ bool) ([]models.Student, error) {
	return nil, nil
}

type fakeReportStorage struct{}

func (fakeReportStorage) Save(_ string, _ []byte) error { return nil }

func (fakeReportStorage) Path(fileID string) (string, error) { return "/tmp/reports/" + fileID, nil }

type fakeReportSigner struct{}

func (fakeReportSigner) Generate(jobID, _ string) (string, time.Time, error) {
	return "tok-" + jobID, time.Now().Add(time.Hour), nil
}

func (fakeReportSigner) Parse(_ string, _ bool) (string, string, time.Time, error) {
	return "job-1", "report.csv", time.Now().Add(time.Hour), nil
}

func reportFixture(classes ...models.Class) (*ReportService, *fakeReportJobRepo) {
	repo := &fakeReportJobRepo{jobs: map[string]*models.ReportJob{}}
	svc := NewReportService(repo, fakeReportAttendances{}, fakeReportStudents{}, staticClassLister{classes: classes}, fakeReportStorage{}, fakeReportSigner{}, 1, zap.NewNop())
	return svc, repo
}

func TestSubmitReport(t *testing.T) {
	svc, repo := reportFixture(models.Class{ID: "cls-1", Name: "Turma A"})
	svc.Start(context.Background())
	defer svc.Stop()

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor, UnitID: strPtr("u1")}
	job, err := svc.Submit(context.Background(), inst, SubmitReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	assert.Equal(t, models.ReportDetailSimple, job.Detail)
	assert.Equal(t, "inst-1", job.RequestedBy)
	require.NotNil(t, job.UnitID)
	assert.Equal(t, "u1", *job.UnitID)
	assert.Contains(t, repo.jobs, "job-new")
}

func TestSubmitReportInvalidFormat(t *testing.T) {
	svc, _ := reportFixture(models.Class{ID: "cls-1"})
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Submit(context.Background(), inst, SubmitReportRequest{Format: models.ReportFormat("xlsx")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestSubmitReportClassOutsideScope(t *testing.T) {
	svc, _ := reportFixture(models.Class{ID: "cls-1", Name: "Turma A"})
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Submit(context.Background(), inst, SubmitReportRequest{
		Format:  models.ReportFormatPDF,
		ClassID: strPtr("cls-9"),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestSubmitReportNoVisibleClasses(t *testing.T) {
	svc, _ := reportFixture()
	monitor := models.Principal{UserID: "mon-1", Role: models.RoleMonitor}

	_, err := svc.Submit(context.Background(), monitor, SubmitReportRequest{Format: models.ReportFormatCSV})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestSubmitReportDateWindow(t *testing.T) {
	svc, _ := reportFixture(models.Class{ID: "cls-1"})
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Submit(context.Background(), inst, SubmitReportRequest{
		Format:   models.ReportFormatCSV,
		FromDate: strPtr("2026-03-01"),
		ToDate:   strPtr("2026-02-01"),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestReportStatusOwnership(t *testing.T) {
	svc, repo := reportFixture()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", RequestedBy: "inst-1", Status: models.ReportJobQueued}

	other := models.Principal{UserID: "inst-2", Role: models.RoleInstructor}
	_, err := svc.Status(context.Background(), other, "job-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	admin := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}
	job, err := svc.Status(context.Background(), admin, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportJobQueued, job.Status)
}

func TestReportDownloadNotReady(t *testing.T) {
	svc, repo := reportFixture()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", RequestedBy: "inst-1", Status: models.ReportJobProcessing}

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}
	_, err := svc.Download(context.Background(), inst, "job-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestReportDownloadSignsToken(t *testing.T) {
	svc, repo := reportFixture()
	path := "report.csv"
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", RequestedBy: "inst-1", Status: models.ReportJobCompleted, FilePath: &path}

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}
	grant, err := svc.Download(context.Background(), inst, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-job-1", grant.Token)
	assert.True(t, grant.ExpiresAt.After(time.Now()))
}
