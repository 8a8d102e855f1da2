package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// AttendanceHandler exposes the daily attendance ledger endpoints.
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
	pendingService    *service.PendingService
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(attendanceService *service.AttendanceService, pendingService *service.PendingService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, pendingService: pendingService}
}

// Create godoc
// @Summary File the daily attendance call for a class
// @Description One call per class per day; a second submission for the same date is rejected
// @Tags attendance
// @Accept json
// @Produce json
// @Param request body service.CreateAttendanceRequest true "Attendance call"
// @Success 201 {object} response.Envelope{data=models.Attendance}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid attendance payload"))
		return
	}

	attendance, err := h.attendanceService.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attendance)
}

// ListByClass godoc
// @Summary List attendance calls filed for a class
// @Tags attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope{data=[]models.Attendance}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/class/{classId} [get]
func (h *AttendanceHandler) ListByClass(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.attendanceService.ListByClass(c.Request.Context(), principal, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Pending godoc
// @Summary List pending attendance calls
// @Description Scans the last three scheduled days of each visible class and flags unfiled calls by urgency
// @Tags attendance
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.PendingAttendance}
// @Security BearerAuth
// @Router /attendance/pending [get]
func (h *AttendanceHandler) Pending(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	pending, err := h.pendingService.PendingFor(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// ResetAll godoc
// @Summary Wipe all students, classes and attendance records
// @Description Admin-only, irreversible environment reset
// @Tags attendance
// @Produce json
// @Success 200 {object} response.Envelope{data=service.ResetAllResult}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/reset-all [post]
func (h *AttendanceHandler) ResetAll(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.attendanceService.ResetAll(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
