package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// UnitHandler exposes the unit catalogue endpoints.
type UnitHandler struct {
	unitService *service.UnitService
}

// NewUnitHandler creates a new UnitHandler.
func NewUnitHandler(unitService *service.UnitService) *UnitHandler {
	return &UnitHandler{unitService: unitService}
}

// List godoc
// @Summary List units
// @Tags units
// @Produce json
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope{data=[]models.Unit}
// @Security BearerAuth
// @Router /units [get]
func (h *UnitHandler) List(c *gin.Context) {
	filter := models.UnitFilter{Search: c.Query("search")}
	filter.Page, filter.PageSize = parsePagination(c)

	units, total, err := h.unitService.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, units, pagination)
}

// Get godoc
// @Summary Get a unit
// @Tags units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope{data=models.Unit}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /units/{id} [get]
func (h *UnitHandler) Get(c *gin.Context) {
	unit, err := h.unitService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unit, nil)
}

// Create godoc
// @Summary Create a unit
// @Tags units
// @Accept json
// @Produce json
// @Param request body service.UpsertUnitRequest true "Unit details"
// @Success 201 {object} response.Envelope{data=models.Unit}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /units [post]
func (h *UnitHandler) Create(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpsertUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid unit payload"))
		return
	}

	unit, err := h.unitService.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, unit)
}

// Update godoc
// @Summary Update a unit
// @Tags units
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param request body service.UpsertUnitRequest true "Unit details"
// @Success 200 {object} response.Envelope{data=models.Unit}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /units/{id} [put]
func (h *UnitHandler) Update(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpsertUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid unit payload"))
		return
	}

	unit, err := h.unitService.Update(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unit, nil)
}

// Delete godoc
// @Summary Deactivate a unit
// @Tags units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /units/{id} [delete]
func (h *UnitHandler) Delete(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.unitService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
