package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// ReportHandler exposes the asynchronous report generation endpoints.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Submit godoc
// @Summary Submit a report generation job
// @Description Queues a CSV or PDF attendance report scoped to the caller's visible classes
// @Tags reports
// @Accept json
// @Produce json
// @Param request body service.SubmitReportRequest true "Report parameters"
// @Success 202 {object} response.Envelope{data=models.ReportJob}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid report payload"))
		return
	}

	job, err := h.reportService.Submit(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get report job status
// @Tags reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=models.ReportJob}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	job, err := h.reportService.Status(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List the caller's report jobs
// @Tags reports
// @Produce json
// @Param limit query int false "Maximum number of jobs"
// @Success 200 {object} response.Envelope{data=[]models.ReportJob}
// @Security BearerAuth
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.reportService.List(c.Request.Context(), principal, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Download godoc
// @Summary Issue a signed download link for a completed report
// @Tags reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=service.ReportDownload}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/{id}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	download, err := h.reportService.Download(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// File godoc
// @Summary Serve a generated report file
// @Description Authenticates via the signed token issued by the download endpoint
// @Tags reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /downloads/reports [get]
func (h *ReportHandler) File(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "token is required"))
		return
	}

	path, err := h.reportService.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.File(path)
}
