package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// DropoutHandler exposes the withdrawal lifecycle endpoints.
type DropoutHandler struct {
	dropoutService *service.DropoutService
}

// NewDropoutHandler creates a new DropoutHandler.
func NewDropoutHandler(dropoutService *service.DropoutService) *DropoutHandler {
	return &DropoutHandler{dropoutService: dropoutService}
}

// Withdraw godoc
// @Summary Withdraw a student
// @Description Records the dropout reason, flips the student to withdrawn and removes them from every roster
// @Tags dropouts
// @Accept json
// @Produce json
// @Param request body service.WithdrawRequest true "Student and reason"
// @Success 201 {object} response.Envelope{data=models.DropoutRecord}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /dropouts [post]
func (h *DropoutHandler) Withdraw(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid withdrawal payload"))
		return
	}

	record, err := h.dropoutService.Withdraw(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Reactivate godoc
// @Summary Reactivate a withdrawn student
// @Description Admin-only; restores the student to active and clears the dropout history
// @Tags dropouts
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /dropouts/{studentId}/reactivate [post]
func (h *DropoutHandler) Reactivate(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.dropoutService.Reactivate(c.Request.Context(), principal, c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List dropout records
// @Tags dropouts
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.DropoutRecord}
// @Security BearerAuth
// @Router /dropouts [get]
func (h *DropoutHandler) List(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, pageSize := parsePagination(c)
	records, total, err := h.dropoutService.List(c.Request.Context(), principal, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Reasons godoc
// @Summary List the dropout reason catalogue
// @Tags dropouts
// @Produce json
// @Success 200 {object} response.Envelope{data=map[string]string}
// @Security BearerAuth
// @Router /dropouts/reasons [get]
func (h *DropoutHandler) Reasons(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.dropoutService.Reasons(), nil)
}
