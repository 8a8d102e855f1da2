package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// maxImportUpload caps the spreadsheet upload size at 10 MB.
const maxImportUpload = 10 << 20

// StudentHandler exposes the student roster endpoints.
type StudentHandler struct {
	studentService *service.StudentService
	importService  *service.ImportService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(studentService *service.StudentService, importService *service.ImportService) *StudentHandler {
	return &StudentHandler{studentService: studentService, importService: importService}
}

// List godoc
// @Summary List students visible to the caller
// @Description Admins see every student; other roles see the rosters of their classes
// @Tags students
// @Produce json
// @Param search query string false "Name, CPF or email search"
// @Param class_id query string false "Filter by class"
// @Param include_withdrawn query bool false "Include withdrawn students (admin only)"
// @Success 200 {object} response.Envelope{data=[]models.Student}
// @Security BearerAuth
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.StudentFilter{
		Search:   c.Query("search"),
		CourseID: c.Query("course_id"),
		UnitID:   c.Query("unit_id"),
		ClassID:  c.Query("class_id"),
	}
	filter.Page, filter.PageSize = parsePagination(c)
	filter.IncludeWithdrawn, _ = strconv.ParseBool(c.Query("include_withdrawn"))
	if status := c.Query("status"); status != "" {
		s := models.StudentStatus(status)
		filter.Status = &s
	}

	students, err := h.studentService.List(c.Request.Context(), principal, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Get godoc
// @Summary Get a student
// @Tags students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope{data=models.Student}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	student, err := h.studentService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register a student
// @Description Monitors cannot register students; CPF must be valid and unique
// @Tags students
// @Accept json
// @Produce json
// @Param request body service.CreateStudentRequest true "Student details"
// @Success 201 {object} response.Envelope{data=models.Student}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid student payload"))
		return
	}

	student, err := h.studentService.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update a student
// @Tags students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param request body service.UpdateStudentRequest true "Fields to update"
// @Success 200 {object} response.Envelope{data=models.Student}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid student payload"))
		return
	}

	student, err := h.studentService.Update(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

type changeStatusRequest struct {
	Status models.StudentStatus `json:"status" binding:"required"`
}

// ChangeStatus godoc
// @Summary Change a student's status
// @Description Withdrawal is not accepted here; use the dropout endpoints
// @Tags students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param request body changeStatusRequest true "New status"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/status [patch]
func (h *StudentHandler) ChangeStatus(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "status is required"))
		return
	}

	if err := h.studentService.ChangeStatus(c.Request.Context(), principal, c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk import students from a spreadsheet
// @Description Accepts a CSV upload (comma or semicolon separated, UTF-8 or Latin-1) and reports per-row outcomes
// @Tags students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param course_id formData string false "Course to assign imported students to"
// @Param class_id formData string false "Class to enroll imported students into"
// @Param update_existing formData bool false "Update students whose CPF already exists"
// @Success 200 {object} response.Envelope{data=models.ImportSummary}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "a spreadsheet file is required"))
		return
	}
	if fileHeader.Size > maxImportUpload {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "file exceeds the 10MB upload limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "IMPORT_READ", http.StatusBadRequest, "unable to read uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportUpload+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "IMPORT_READ", http.StatusBadRequest, "unable to read uploaded file"))
		return
	}

	updateExisting, _ := strconv.ParseBool(c.PostForm("update_existing"))
	req := models.ImportRequest{
		Data:           data,
		Filename:       fileHeader.Filename,
		CourseID:       c.PostForm("course_id"),
		ClassID:        c.PostForm("class_id"),
		UpdateExisting: updateExisting,
	}

	summary, err := h.importService.Import(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
