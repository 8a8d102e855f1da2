package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

// allowedJustificationMIME caps attachments to document and image types.
var allowedJustificationMIME = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

type justificationRepository interface {
	Create(ctx context.Context, j *models.Justification) error
	FindByID(ctx context.Context, id string) (*models.Justification, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Justification, error)
	UpdateStatus(ctx context.Context, id string, status models.JustificationStatus) error
	Delete(ctx context.Context, id string) error
}

type justificationAttendanceRepository interface {
	ClearJustificationRef(ctx context.Context, justificationID string) error
}

type justificationStorage interface {
	Store(data []byte, originalName string) (string, error)
	Retrieve(fileID string) ([]byte, error)
	Delete(fileID string) error
}

// JustificationFile is a retrieved attachment ready to serve.
type JustificationFile struct {
	Data     []byte
	Filename string
	MIME     string
}

// JustificationAttachment describes an uploaded supporting document.
type JustificationAttachment struct {
	Data     []byte
	Filename string
	MIME     string
}

// CreateJustificationRequest is the payload for registering an absence
// justification.
type CreateJustificationRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	AttendanceID *string `json:"attendance_id,omitempty"`
	ReasonCode   string  `json:"reason_code" validate:"required"`
	ReasonText   *string `json:"reason_text,omitempty"`
}

// JustificationService registers absence justifications, optionally
// with a file attachment stored on disk.
type JustificationService struct {
	repo        justificationRepository
	attendances justificationAttendanceRepository
	scope       studentAuthorizer
	storage     justificationStorage
	validator   *validator.Validate
	logger      *zap.Logger
	maxFileSize int64
}

// NewJustificationService constructs a JustificationService.
func NewJustificationService(repo justificationRepository, attendances justificationAttendanceRepository, scope studentAuthorizer, storage justificationStorage, validate *validator.Validate, logger *zap.Logger, maxFileSize int64) *JustificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &JustificationService{
		repo:        repo,
		attendances: attendances,
		scope:       scope,
		storage:     storage,
		validator:   validate,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// Create registers a justification. The CUSTOM reason code requires a
// written explanation; catalogue codes do not.
func (s *JustificationService) Create(ctx context.Context, principal models.Principal, req CreateJustificationRequest, attachment *JustificationAttachment) (*models.Justification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid justification payload")
	}
	if !models.ValidJustificationReason(req.ReasonCode) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown justification reason code")
	}
	if req.ReasonCode == models.JustificationReasonCustom && (req.ReasonText == nil || strings.TrimSpace(*req.ReasonText) == "") {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "custom reason requires a written explanation")
	}

	allowed, err := s.scope.CanManageStudent(ctx, principal, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}

	j := &models.Justification{
		StudentID:    req.StudentID,
		AttendanceID: req.AttendanceID,
		ReasonCode:   req.ReasonCode,
		ReasonText:   req.ReasonText,
		Status:       models.JustificationRegistered,
		Visible:      true,
		UploadedByID: principal.UserID,
	}

	if attachment != nil && len(attachment.Data) > 0 {
		if int64(len(attachment.Data)) > s.maxFileSize {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "attachment exceeds the size limit")
		}
		if !allowedJustificationMIME[attachment.MIME] {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "attachment must be pdf, png, or jpeg")
		}
		fileID, err := s.storage.Store(attachment.Data, attachment.Filename)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
		size := int64(len(attachment.Data))
		j.FileID = &fileID
		j.FileName = &attachment.Filename
		j.FileMIME = &attachment.MIME
		j.FileSize = &size
	}

	if err := s.repo.Create(ctx, j); err != nil {
		if j.FileID != nil {
			if delErr := s.storage.Delete(*j.FileID); delErr != nil {
				s.logger.Warn("orphaned attachment left behind", zap.String("file_id", *j.FileID), zap.Error(delErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create justification")
	}
	s.logger.Info("justification registered",
		zap.String("justification_id", j.ID),
		zap.String("student_id", j.StudentID),
		zap.String("reason", j.ReasonCode))
	return j, nil
}

// ListByStudent returns the visible justifications of a student the
// caller may manage.
func (s *JustificationService) ListByStudent(ctx context.Context, principal models.Principal, studentID string) ([]models.Justification, error) {
	allowed, err := s.scope.CanManageStudent(ctx, principal, studentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list justifications")
	}
	return records, nil
}

// Review moves a justification to reviewed or rejected. Monitors
// cannot review.
func (s *JustificationService) Review(ctx context.Context, principal models.Principal, id string, status models.JustificationStatus) error {
	if status != models.JustificationReviewed && status != models.JustificationRejected {
		return appErrors.Clone(appErrors.ErrInvalidInput, "status must be reviewed or rejected")
	}
	if principal.Role == models.RoleMonitor {
		return appErrors.Clone(appErrors.ErrForbidden, "monitors cannot review justifications")
	}
	j, err := s.findJustification(ctx, id)
	if err != nil {
		return err
	}
	allowed, err := s.scope.CanManageStudent(ctx, principal, j.StudentID)
	if err != nil {
		return err
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update justification")
	}
	return nil
}

// Delete removes a justification and its attachment. Only the
// uploader or an admin may delete; any attendance entry pointing at it
// has the reference cleared first.
func (s *JustificationService) Delete(ctx context.Context, principal models.Principal, id string) error {
	j, err := s.findJustification(ctx, id)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && j.UploadedByID != principal.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader or an admin may delete a justification")
	}
	if err := s.attendances.ClearJustificationRef(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to detach justification from attendance")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete justification")
	}
	if j.FileID != nil {
		if err := s.storage.Delete(*j.FileID); err != nil {
			s.logger.Warn("failed to delete attachment", zap.String("file_id", *j.FileID), zap.Error(err))
		}
	}
	return nil
}

// DownloadFile fetches the stored attachment of a justification the
// caller may manage.
func (s *JustificationService) DownloadFile(ctx context.Context, principal models.Principal, id string) (*JustificationFile, error) {
	j, err := s.findJustification(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed, err := s.scope.CanManageStudent(ctx, principal, j.StudentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage this student")
	}
	if j.FileID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "justification has no attachment")
	}
	data, err := s.storage.Retrieve(*j.FileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attachment")
	}
	file := &JustificationFile{Data: data, Filename: *j.FileID, MIME: "application/octet-stream"}
	if j.FileName != nil {
		file.Filename = *j.FileName
	}
	if j.FileMIME != nil {
		file.MIME = *j.FileMIME
	}
	return file, nil
}

// Reasons exposes the fixed justification reason catalogue.
func (s *JustificationService) Reasons() map[string]string {
	return models.JustificationReasons
}

func (s *JustificationService) findJustification(ctx context.Context, id string) (*models.Justification, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "justification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load justification")
	}
	return j, nil
}
