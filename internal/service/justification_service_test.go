package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeJustificationRepo struct {
	records map[string]*models.Justification
}

func (f *fakeJustificationRepo) Create(_ context.Context, j *models.Justification) error {
	j.ID = "jus-new"
	f.records[j.ID] = j
	return nil
}

func (f *fakeJustificationRepo) FindByID(_ context.Context, id string) (*models.Justification, error) {
	if j, ok := f.records[id]; ok {
		return j, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeJustificationRepo) ListByStudent(_ context.Context, studentID string) ([]models.Justification, error) {
	var out []models.Justification
	for _, j := range f.records {
		if j.StudentID == studentID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJustificationRepo) UpdateStatus(_ context.Context, id string, status models.JustificationStatus) error {
	f.records[id].Status = status
	return nil
}

func (f *fakeJustificationRepo) Delete(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

type fakeJustificationAttendances struct {
	cleared []string
}

func (f *fakeJustificationAttendances) ClearJustificationRef(_ context.Context, justificationID string) error {
	f.cleared = append(f.cleared, justificationID)
	return nil
}

type fakeBlobStore struct {
	files   map[string][]byte
	deleted []string
}

func (f *fakeBlobStore) Store(data []byte, _ string) (string, error) {
	id := "blob-1"
	f.files[id] = data
	return id, nil
}

func (f *fakeBlobStore) Retrieve(fileID string) ([]byte, error) {
	if data, ok := f.files[fileID]; ok {
		return data, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBlobStore) Delete(fileID string) error {
	f.deleted = append(f.deleted, fileID)
	delete(f.files, fileID)
	return nil
}

func justificationFixture() (*JustificationService, *fakeJustificationRepo, *fakeJustificationAttendances, *fakeBlobStore) {
	repo := &fakeJustificationRepo{records: map[string]*models.Justification{}}
	attendances := &fakeJustificationAttendances{}
	store := &fakeBlobStore{files: map[string][]byte{}}
	svc := NewJustificationService(repo, attendances, allowAllStudents{allow: true}, store, nil, zap.NewNop(), 1<<20)
	return svc, repo, attendances, store
}

func TestCreateJustification(t *testing.T) {
	svc, repo, _, _ := justificationFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	j, err := svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: "HEALTH_PROBLEMS",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.JustificationRegistered, j.Status)
	assert.Equal(t, "inst-1", j.UploadedByID)
	assert.True(t, j.Visible)
	assert.Contains(t, repo.records, "jus-new")
}

func TestCreateJustificationCustomRequiresText(t *testing.T) {
	svc, _, _, _ := justificationFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: models.JustificationReasonCustom,
	}, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))

	text := "Family emergency"
	_, err = svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: models.JustificationReasonCustom,
		ReasonText: &text,
	}, nil)
	assert.NoError(t, err)
}

func TestCreateJustificationUnknownReason(t *testing.T) {
	svc, _, _, _ := justificationFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: "OVERSLEPT",
	}, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestCreateJustificationWithAttachment(t *testing.T) {
	svc, repo, _, store := justificationFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	j, err := svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: "HEALTH_PROBLEMS",
	}, &JustificationAttachment{
		Data:     []byte("%PDF-1.4 fake"),
		Filename: "atestado.pdf",
		MIME:     "application/pdf",
	})
	require.NoError(t, err)

	require.NotNil(t, j.FileID)
	assert.Equal(t, "blob-1", *j.FileID)
	require.NotNil(t, j.FileSize)
	assert.Equal(t, int64(13), *j.FileSize)
	assert.Contains(t, store.files, "blob-1")
	assert.Contains(t, repo.records, "jus-new")
}

func TestCreateJustificationRejectsBadMIME(t *testing.T) {
	svc, _, _, _ := justificationFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: "HEALTH_PROBLEMS",
	}, &JustificationAttachment{Data: []byte("MZ"), Filename: "virus.exe", MIME: "application/octet-stream"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestCreateJustificationRejectsOversizedAttachment(t *testing.T) {
	svc, _, _, _ := justificationFixture()
	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Create(context.Background(), inst, CreateJustificationRequest{
		StudentID:  "s1",
		ReasonCode: "HEALTH_PROBLEMS",
	}, &JustificationAttachment{Data: bytes.Repeat([]byte{0x1}, (1<<20)+1), Filename: "big.pdf", MIME: "application/pdf"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestReviewJustification(t *testing.T) {
	svc, repo, _, _ := justificationFixture()
	repo.records["jus-1"] = &models.Justification{ID: "jus-1", StudentID: "s1", Status: models.JustificationRegistered}

	ped := models.Principal{UserID: "ped-1", Role: models.RolePedagogue}
	require.NoError(t, svc.Review(context.Background(), ped, "jus-1", models.JustificationReviewed))
	assert.Equal(t, models.JustificationReviewed, repo.records["jus-1"].Status)
}

func TestReviewJustificationMonitorForbidden(t *testing.T) {
	svc, repo, _, _ := justificationFixture()
	repo.records["jus-1"] = &models.Justification{ID: "jus-1", StudentID: "s1"}

	monitor := models.Principal{UserID: "mon-1", Role: models.RoleMonitor}
	err := svc.Review(context.Background(), monitor, "jus-1", models.JustificationReviewed)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReviewJustificationInvalidStatus(t *testing.T) {
	svc, _, _, _ := justificationFixture()
	ped := models.Principal{UserID: "ped-1", Role: models.RolePedagogue}

	err := svc.Review(context.Background(), ped, "jus-1", models.JustificationRegistered)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestDeleteJustificationUploaderOnly(t *testing.T) {
	svc, repo, attendances, store := justificationFixture()
	fileID := "blob-1"
	store.files[fileID] = []byte("data")
	repo.records["jus-1"] = &models.Justification{ID: "jus-1", StudentID: "s1", UploadedByID: "inst-1", FileID: &fileID}

	other := models.Principal{UserID: "inst-2", Role: models.RoleInstructor}
	err := svc.Delete(context.Background(), other, "jus-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, attendances.cleared)

	uploader := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}
	require.NoError(t, svc.Delete(context.Background(), uploader, "jus-1"))
	assert.Equal(t, []string{"jus-1"}, attendances.cleared)
	assert.Equal(t, []string{"blob-1"}, store.deleted)
	assert.NotContains(t, repo.records, "jus-1")
}

func TestDeleteJustificationAdminOverride(t *testing.T) {
	svc, repo, _, _ := justificationFixture()
	repo.records["jus-1"] = &models.Justification{ID: "jus-1", StudentID: "s1", UploadedByID: "inst-1"}

	admin := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}
	require.NoError(t, svc.Delete(context.Background(), admin, "jus-1"))
	assert.NotContains(t, repo.records, "jus-1")
}

func TestDownloadJustificationFile(t *testing.T) {
	svc, repo, _, store := justificationFixture()
	fileID := "blob-1"
	name := "atestado.pdf"
	mime := "application/pdf"
	store.files[fileID] = []byte("pdf bytes")
	repo.records["jus-1"] = &models.Justification{ID: "jus-1", StudentID: "s1", FileID: &fileID, FileName: &name, FileMIME: &mime}

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}
	file, err := svc.DownloadFile(context.Background(), inst, "jus-1")
	require.NoError(t, err)
	assert.Equal(t, "atestado.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.MIME)
	assert.Equal(t, []byte("pdf bytes"), file.Data)
}

func TestDownloadJustificationWithoutAttachment(t *testing.T) {
	svc, repo, _, _ := justificationFixture()
	repo.records["jus-1"] = &models.Justification{ID: "jus-1", StudentID: "s1"}

	inst := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}
	_, err := svc.DownloadFile(context.Background(), inst, "jus-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
