package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// JustificationHandler exposes the absence justification endpoints.
type JustificationHandler struct {
	justificationService *service.JustificationService
}

// NewJustificationHandler creates a new JustificationHandler.
func NewJustificationHandler(justificationService *service.JustificationService) *JustificationHandler {
	return &JustificationHandler{justificationService: justificationService}
}

// Create godoc
// @Summary Register an absence justification
// @Description Accepts an optional PDF or image attachment up to the configured size limit
// @Tags justifications
// @Accept multipart/form-data
// @Produce json
// @Param student_id formData string true "Student ID"
// @Param attendance_id formData string false "Attendance record the absence belongs to"
// @Param reason_code formData string true "Reason code from the catalogue"
// @Param reason_text formData string false "Free text, required for the CUSTOM code"
// @Param file formData file false "Supporting document"
// @Success 201 {object} response.Envelope{data=models.Justification}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /justifications [post]
func (h *JustificationHandler) Create(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.CreateJustificationRequest{
		StudentID:  c.PostForm("student_id"),
		ReasonCode: c.PostForm("reason_code"),
	}
	if v := c.PostForm("attendance_id"); v != "" {
		req.AttendanceID = &v
	}
	if v := c.PostForm("reason_text"); v != "" {
		req.ReasonText = &v
	}

	var attachment *service.JustificationAttachment
	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, "UPLOAD_READ", http.StatusBadRequest, "unable to read uploaded file"))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, "UPLOAD_READ", http.StatusBadRequest, "unable to read uploaded file"))
			return
		}
		mime := fileHeader.Header.Get("Content-Type")
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		attachment = &service.JustificationAttachment{
			Data:     data,
			Filename: fileHeader.Filename,
			MIME:     mime,
		}
	}

	justification, err := h.justificationService.Create(c.Request.Context(), principal, req, attachment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, justification)
}

// ListByStudent godoc
// @Summary List justifications for a student
// @Tags justifications
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope{data=[]models.Justification}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /justifications/student/{studentId} [get]
func (h *JustificationHandler) ListByStudent(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	justifications, err := h.justificationService.ListByStudent(c.Request.Context(), principal, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, justifications, nil)
}

type reviewRequest struct {
	Status models.JustificationStatus `json:"status" binding:"required"`
}

// Review godoc
// @Summary Review a justification
// @Description Marks a justification reviewed or rejected; monitors cannot review
// @Tags justifications
// @Accept json
// @Produce json
// @Param id path string true "Justification ID"
// @Param request body reviewRequest true "Review outcome"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /justifications/{id}/review [patch]
func (h *JustificationHandler) Review(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "status is required"))
		return
	}

	if err := h.justificationService.Review(c.Request.Context(), principal, c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a justification
// @Description Only the uploader or an admin may delete; the attendance reference is cleared first
// @Tags justifications
// @Produce json
// @Param id path string true "Justification ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /justifications/{id} [delete]
func (h *JustificationHandler) Delete(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.justificationService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadFile godoc
// @Summary Download a justification attachment
// @Tags justifications
// @Produce octet-stream
// @Param id path string true "Justification ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /justifications/{id}/file [get]
func (h *JustificationHandler) DownloadFile(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.justificationService.DownloadFile(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.MIME, file.Data)
}

// Reasons godoc
// @Summary List the justification reason catalogue
// @Tags justifications
// @Produce json
// @Success 200 {object} response.Envelope{data=map[string]string}
// @Security BearerAuth
// @Router /justifications/reasons [get]
func (h *JustificationHandler) Reasons(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.justificationService.Reasons(), nil)
}
