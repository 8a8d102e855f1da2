package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/export"
	"github.com/ios-sistema/presenca-api/pkg/jobs"
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
	UpdateProgress(ctx context.Context, id string, progress int) error
	MarkCompleted(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type reportAttendanceRepository interface {
	ListForReport(ctx context.Context, classIDs []string, from, to *time.Time) ([]models.Attendance, error)
}

type reportStudentRepository interface {
	ListByIDs(ctx context.Context, ids []string, includeWithdrawn bool) ([]models.Student, error)
}

type reportClassLister interface {
	VisibleClasses(ctx context.Context, principal models.Principal) ([]models.Class, error)
}

type reportStorage interface {
	Save(filename string, data []byte) error
	Path(fileID string) (string, error)
}

type reportSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// SubmitReportRequest describes one attendance report request.
type SubmitReportRequest struct {
	Format   models.ReportFormat `json:"format"`
	Detail   models.ReportDetail `json:"detail"`
	ClassID  *string             `json:"class_id,omitempty"`
	FromDate *string             `json:"from_date,omitempty"`
	ToDate   *string             `json:"to_date,omitempty"`
}

// ReportDownload is a signed, time-limited download grant.
type ReportDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type reportPayload struct {
	jobID    string
	format   models.ReportFormat
	detail   models.ReportDetail
	classIDs []string
	names    map[string]string
	from     *time.Time
	to       *time.Time
}

// ReportService generates attendance reports asynchronously. Job rows
// are persisted so status survives restarts; the queue itself is
// in-memory, so an interrupted job stays in its last recorded state
// until resubmitted.
type ReportService struct {
	repo        reportJobRepository
	attendances reportAttendanceRepository
	students    reportStudentRepository
	scope       reportClassLister
	storage     reportStorage
	signer      reportSigner
	csv         datasetRenderer
	pdf         datasetRenderer
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NewReportService constructs a ReportService with its own worker queue.
func NewReportService(repo reportJobRepository, attendances reportAttendanceRepository, students reportStudentRepository, scope reportClassLister, store reportStorage, signer reportSigner, workers int, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		repo:        repo,
		attendances: attendances,
		students:    students,
		scope:       scope,
		storage:     store,
		signer:      signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return s
}

// Start begins report workers.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains report workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Submit validates the request against the caller's visible classes,
// persists the job, and enqueues it for background generation.
func (s *ReportService) Submit(ctx context.Context, principal models.Principal, req SubmitReportRequest) (*models.ReportJob, error) {
	if req.Format != models.ReportFormatCSV && req.Format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "format must be csv or pdf")
	}
	if req.Detail == "" {
		req.Detail = models.ReportDetailSimple
	}
	if req.Detail != models.ReportDetailSimple && req.Detail != models.ReportDetailComplete {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "detail must be simple or complete")
	}

	var from, to *time.Time
	if req.FromDate != nil && *req.FromDate != "" {
		parsed, err := dates.Parse(*req.FromDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid from date")
		}
		from = &parsed
	}
	if req.ToDate != nil && *req.ToDate != "" {
		parsed, err := dates.Parse(*req.ToDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "invalid to date")
		}
		to = &parsed
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "to date precedes from date")
	}

	visible, err := s.scope.VisibleClasses(ctx, principal)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(visible))
	var classIDs []string
	for _, class := range visible {
		names[class.ID] = class.Name
		classIDs = append(classIDs, class.ID)
	}
	if req.ClassID != nil && *req.ClassID != "" {
		if _, ok := names[*req.ClassID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your scope")
		}
		classIDs = []string{*req.ClassID}
	}
	if len(classIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "no classes in scope for this report")
	}

	job := &models.ReportJob{
		RequestedBy: principal.UserID,
		Format:      req.Format,
		Detail:      req.Detail,
		ClassID:     req.ClassID,
		FromDate:    from,
		ToDate:      to,
		Status:      models.ReportJobQueued,
	}
	if unit := principal.HomeUnit(); unit != "" {
		job.UnitID = &unit
	}
	if course := principal.HomeCourse(); course != "" {
		job.CourseID = &course
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}

	payload := reportPayload{
		jobID:    job.ID,
		format:   job.Format,
		detail:   job.Detail,
		classIDs: classIDs,
		names:    names,
		from:     from,
		to:       to,
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "attendance_report", Payload: payload}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable"); markErr != nil {
			s.logger.Error("failed to mark unqueued job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("report job submitted",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Format)),
		zap.Int("classes", len(classIDs)))
	return job, nil
}

// Status returns a job's current state. Only the requester or an admin
// may poll it.
func (s *ReportService) Status(ctx context.Context, principal models.Principal, jobID string) (*models.ReportJob, error) {
	job, err := s.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && job.RequestedBy != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// List returns the caller's recent report jobs.
func (s *ReportService) List(ctx context.Context, principal models.Principal, limit int) ([]models.ReportJob, error) {
	records, err := s.repo.ListByUser(ctx, principal.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return records, nil
}

// Download issues a signed token for a completed report.
func (s *ReportService) Download(ctx context.Context, principal models.Principal, jobID string) (*ReportDownload, error) {
	job, err := s.Status(ctx, principal, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ReportJobCompleted || job.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &ReportDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the on-disk path
// of the report file. No session is required: the token itself is the
// authorization.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthenticated, "invalid or expired download token")
	}
	job, err := s.findJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.FilePath == nil || *job.FilePath != relPath {
		return "", appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	path, err := s.storage.Path(relPath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve report file")
	}
	return path, nil
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reportPayload)
	if !ok {
		s.logger.Error("report job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.UpdateProgress(ctx, payload.jobID, 10); err != nil {
		return err
	}

	dataset, err := s.buildDataset(ctx, payload)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, payload.jobID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark report job", zap.String("job_id", payload.jobID), zap.Error(markErr))
		}
		return nil
	}
	if err := s.repo.UpdateProgress(ctx, payload.jobID, 60); err != nil {
		return err
	}

	renderer := s.csv
	ext := "csv"
	if payload.format == models.ReportFormatPDF {
		renderer = s.pdf
		ext = "pdf"
	}
	data, err := renderer.Render(*dataset)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, payload.jobID, "render failed"); markErr != nil {
			s.logger.Error("failed to mark report job", zap.String("job_id", payload.jobID), zap.Error(markErr))
		}
		return nil
	}

	relPath := fmt.Sprintf("reports/%s.%s", payload.jobID, ext)
	if err := s.storage.Save(relPath, data); err != nil {
		if markErr := s.repo.MarkFailed(ctx, payload.jobID, "storage write failed"); markErr != nil {
			s.logger.Error("failed to mark report job", zap.String("job_id", payload.jobID), zap.Error(markErr))
		}
		return nil
	}
	if err := s.repo.MarkCompleted(ctx, payload.jobID, relPath); err != nil {
		return err
	}
	s.logger.Info("report job completed",
		zap.String("job_id", payload.jobID),
		zap.Int("rows", len(dataset.Rows)))
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, payload reportPayload) (*export.Dataset, error) {
	records, err := s.attendances.ListForReport(ctx, payload.classIDs, payload.from, payload.to)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return payload.names[records[i].ClassID] < payload.names[records[j].ClassID]
		}
		return records[i].Date.Before(records[j].Date)
	})

	if payload.detail == models.ReportDetailSimple {
		dataset := &export.Dataset{
			Title:   "Attendance summary",
			Headers: []string{"Class", "Date", "Present", "Absent"},
		}
		for _, att := range records {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Class":   payload.names[att.ClassID],
				"Date":    att.Date.Format(dates.DayOnly),
				"Present": fmt.Sprintf("%d", att.TotalPresent),
				"Absent":  fmt.Sprintf("%d", att.TotalAbsent),
			})
		}
		return dataset, nil
	}

	names, err := s.studentNames(ctx, records)
	if err != nil {
		return nil, err
	}
	dataset := &export.Dataset{
		Title:   "Attendance detail",
		Headers: []string{"Class", "Date", "Student", "Status", "Note"},
	}
	for _, att := range records {
		for _, entry := range att.Entries {
			status := "absent"
			if entry.Present {
				status = "present"
			}
			note := ""
			if entry.Note != nil {
				note = *entry.Note
			}
			studentName := names[entry.StudentID]
			if studentName == "" {
				studentName = entry.StudentID
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Class":   payload.names[att.ClassID],
				"Date":    att.Date.Format(dates.DayOnly),
				"Student": studentName,
				"Status":  status,
				"Note":    note,
			})
		}
	}
	return dataset, nil
}

func (s *ReportService) studentNames(ctx context.Context, records []models.Attendance) (map[string]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, att := range records {
		for _, entry := range att.Entries {
			if !seen[entry.StudentID] {
				seen[entry.StudentID] = true
				ids = append(ids, entry.StudentID)
			}
		}
	}
	students, err := s.students.ListByIDs(ctx, ids, true)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName
	}
	return names, nil
}

func (s *ReportService) findJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}
