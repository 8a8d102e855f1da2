package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// ClassHandler exposes the class lifecycle and roster endpoints.
type ClassHandler struct {
	classService *service.ClassService
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(classService *service.ClassService) *ClassHandler {
	return &ClassHandler{classService: classService}
}

// List godoc
// @Summary List classes visible to the caller
// @Description Admins see every active class; instructors their own; pedagogues their extension classes; monitors the classes they assist
// @Tags classes
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.Class}
// @Security BearerAuth
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	classes, err := h.classService.List(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Get godoc
// @Summary Get a class with its roster
// @Tags classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope{data=models.Class}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	class, err := h.classService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create a class
// @Description Non-admins become the responsible and must stay within their own unit and course
// @Tags classes
// @Accept json
// @Produce json
// @Param request body service.CreateClassRequest true "Class details"
// @Success 201 {object} response.Envelope{data=models.Class}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid class payload"))
		return
	}

	class, err := h.classService.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update a class
// @Tags classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param request body service.UpdateClassRequest true "Fields to update"
// @Success 200 {object} response.Envelope{data=models.Class}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid class payload"))
		return
	}

	class, err := h.classService.Update(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Deactivate a class
// @Tags classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.classService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Enroll godoc
// @Summary Enroll a student into a class
// @Description Fails when the class is full, the student is withdrawn, or already enrolled
// @Tags classes
// @Produce json
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/students/{studentId} [post]
func (h *ClassHandler) Enroll(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.classService.Enroll(c.Request.Context(), principal, c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unenroll godoc
// @Summary Remove a student from a class roster
// @Tags classes
// @Produce json
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/students/{studentId} [delete]
func (h *ClassHandler) Unenroll(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.classService.Unenroll(c.Request.Context(), principal, c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
