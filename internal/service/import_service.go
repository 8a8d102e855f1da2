package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/pkg/cpf"
	"github.com/ios-sistema/presenca-api/pkg/dates"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

// headerAliases maps the accepted spreadsheet column spellings to the
// logical field they carry. Headers are matched after normalization:
// lowercased, trimmed, spaces and hyphens folded to underscores.
var headerAliases = map[string]string{
	"nome":               "name",
	"nome_completo":      "name",
	"nome_do_aluno":      "name",
	"aluno":              "name",
	"name":               "name",
	"full_name":          "name",
	"cpf":                "cpf",
	"documento":          "cpf",
	"cpf_do_aluno":       "cpf",
	"data_nascimento":    "birth_date",
	"data_de_nascimento": "birth_date",
	"nascimento":         "birth_date",
	"birth_date":         "birth_date",
	"data_nasc":          "birth_date",
	"email":              "email",
	"e_mail":             "email",
	"telefone":           "phone",
	"celular":            "phone",
	"fone":               "phone",
	"phone":              "phone",
	"rg":                 "secondary_id",
	"matricula":          "secondary_id",
	"secondary_id":       "secondary_id",
	"genero":             "gender",
	"sexo":               "gender",
	"gender":             "gender",
	"endereco":           "address",
	"address":            "address",
}

type importStudentRepository interface {
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type importClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	AddStudent(ctx context.Context, classID, studentID string) (bool, error)
}

// ImportService reconciles externally authored spreadsheets against the
// student roster. Input tolerance is a requirement, not a nicety: the
// files come from varied export settings, so encoding, delimiter, and
// header spelling are all auto-detected.
type ImportService struct {
	students  importStudentRepository
	classes   importClassRepository
	scope     classAuthorizer
	logger    *zap.Logger
	maxRows   int
	maxErrors int
}

// NewImportService constructs an ImportService.
func NewImportService(students importStudentRepository, classes importClassRepository, scope classAuthorizer, logger *zap.Logger, maxRows, maxErrors int) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	if maxErrors <= 0 {
		maxErrors = 50
	}
	return &ImportService{
		students:  students,
		classes:   classes,
		scope:     scope,
		logger:    logger,
		maxRows:   maxRows,
		maxErrors: maxErrors,
	}
}

// Import parses the tabular payload and inserts, updates, or skips each
// row. A bad row never fails the batch: it is recorded in the summary
// and processing continues. Counts always reflect true totals even when
// the returned error list is capped; a file longer than the row limit
// is processed up to the limit and the summary marks the truncation.
func (s *ImportService) Import(ctx context.Context, principal models.Principal, req models.ImportRequest) (*models.ImportSummary, error) {
	if principal.Role == models.RoleMonitor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "monitors cannot import students")
	}

	courseID := req.CourseID
	if principal.Role == models.RoleInstructor && courseID == "" {
		courseID = principal.HomeCourse()
		if courseID == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, "target course is required")
		}
	}

	var targetClass *models.Class
	if req.ClassID != "" {
		class, err := s.classes.FindByID(ctx, req.ClassID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target class not found")
		}
		targetClass = class
	}

	text, err := decodeSpreadsheet(req.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "unreadable file encoding")
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "file has no header row")
	}
	columns := mapHeader(header)
	if _, ok := columnIndex(columns, "name"); !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "no name column recognized in header")
	}
	if _, ok := columnIndex(columns, "cpf"); !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "no cpf column recognized in header")
	}

	canEnroll := targetClass != nil && s.scope.CanManageClass(principal, *targetClass)
	if targetClass != nil && !canEnroll {
		s.logger.Warn("import enrollment skipped: caller cannot manage target class",
			zap.String("class_id", targetClass.ID),
			zap.String("user_id", principal.UserID))
	}

	summary := &models.ImportSummary{Errors: []models.ImportRowError{}}
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			s.recordError(summary, rowNum, "unparseable row")
			continue
		}
		// Rows already written must stay reported, so overflow stops
		// consumption and flags the summary instead of erroring.
		if summary.TotalRows >= s.maxRows {
			summary.RowsTruncated = true
			break
		}
		summary.TotalRows++

		row := extract(columns, record)
		if strings.TrimSpace(row["name"]) == "" {
			s.recordError(summary, rowNum, "missing name")
			continue
		}
		normalized := cpf.Normalize(row["cpf"])
		if normalized == "" {
			s.recordError(summary, rowNum, "missing cpf")
			continue
		}
		if !cpf.Valid(normalized) {
			s.recordError(summary, rowNum, fmt.Sprintf("invalid cpf %q", row["cpf"]))
			continue
		}

		student, parseErr := s.buildStudent(principal, row, normalized, courseID)
		if parseErr != "" {
			s.recordError(summary, rowNum, parseErr)
			continue
		}

		existing, err := s.students.FindByCPF(ctx, normalized)
		switch {
		case err == nil:
			if req.UpdateExisting {
				mergeStudent(existing, student)
				if err := s.students.Update(ctx, existing); err != nil {
					s.recordError(summary, rowNum, "failed to update student")
					continue
				}
				summary.Updated++
				student = existing
			} else {
				summary.Skipped++
				student = existing
			}
		case errors.Is(err, sql.ErrNoRows):
			if err := s.students.Create(ctx, student); err != nil {
				s.recordError(summary, rowNum, "failed to create student")
				continue
			}
			summary.Inserted++
		default:
			s.recordError(summary, rowNum, "storage lookup failed")
			continue
		}

		if canEnroll {
			added, err := s.classes.AddStudent(ctx, targetClass.ID, student.ID)
			if err != nil {
				// Enrollment failures never fail the row.
				s.logger.Warn("import enrollment failed",
					zap.String("class_id", targetClass.ID),
					zap.String("student_id", student.ID),
					zap.Error(err))
			} else if added {
				summary.Enrolled++
			}
		}
	}

	s.logger.Info("student import finished",
		zap.String("user_id", principal.UserID),
		zap.Int("total", summary.TotalRows),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.ErrorCount))
	return summary, nil
}

func (s *ImportService) buildStudent(principal models.Principal, row map[string]string, normalizedCPF, courseID string) (*models.Student, string) {
	student := &models.Student{
		FullName:      strings.TrimSpace(row["name"]),
		CPF:           normalizedCPF,
		Status:        models.StudentStatusActive,
		Active:        true,
		CreatedByID:   principal.UserID,
		CreatedByName: principal.FullName,
		CreatedByRole: principal.Role,
	}
	if courseID != "" {
		student.CourseID = &courseID
	}
	if unit := principal.HomeUnit(); unit != "" {
		student.UnitID = &unit
	}
	if raw := strings.TrimSpace(row["birth_date"]); raw != "" {
		parsed, err := dates.Parse(raw)
		if err != nil {
			return nil, fmt.Sprintf("invalid birth date %q", raw)
		}
		student.BirthDate = &parsed
	}
	setOptional(&student.Email, row["email"])
	setOptional(&student.Phone, row["phone"])
	setOptional(&student.SecondaryID, row["secondary_id"])
	setOptional(&student.Gender, row["gender"])
	setOptional(&student.Address, row["address"])
	return student, ""
}

func (s *ImportService) recordError(summary *models.ImportSummary, row int, message string) {
	summary.ErrorCount++
	if len(summary.Errors) < s.maxErrors {
		summary.Errors = append(summary.Errors, models.ImportRowError{Row: row, Message: message})
	} else {
		summary.ErrorsTruncated = true
	}
}

// mergeStudent copies supplied optional fields onto the stored record,
// leaving absent columns untouched.
func mergeStudent(dst, src *models.Student) {
	if src.FullName != "" {
		dst.FullName = src.FullName
	}
	if src.BirthDate != nil {
		dst.BirthDate = src.BirthDate
	}
	if src.Email != nil {
		dst.Email = src.Email
	}
	if src.Phone != nil {
		dst.Phone = src.Phone
	}
	if src.SecondaryID != nil {
		dst.SecondaryID = src.SecondaryID
	}
	if src.Gender != nil {
		dst.Gender = src.Gender
	}
	if src.Address != nil {
		dst.Address = src.Address
	}
	if src.CourseID != nil {
		dst.CourseID = src.CourseID
	}
}

// decodeSpreadsheet tries UTF-8 first, then the two legacy single-byte
// encodings common in spreadsheet exports.
func decodeSpreadsheet(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, cm := range []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1} {
		decoded, err := cm.NewDecoder().Bytes(data)
		if err == nil {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("unsupported character encoding")
}

// sniffDelimiter picks comma or semicolon from the header line.
func sniffDelimiter(text string) rune {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// mapHeader resolves each column position to a logical field name.
// Unrecognized columns map to empty and are ignored.
func mapHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(raw))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		columns[i] = headerAliases[key]
	}
	return columns
}

func columnIndex(columns []string, field string) (int, bool) {
	for i, c := range columns {
		if c == field {
			return i, true
		}
	}
	return 0, false
}

func extract(columns []string, record []string) map[string]string {
	row := make(map[string]string, len(columns))
	for i, field := range columns {
		if field == "" || i >= len(record) {
			continue
		}
		row[field] = strings.TrimSpace(record[i])
	}
	return row
}

func setOptional(dst **string, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		*dst = &value
	}
}
