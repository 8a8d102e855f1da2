package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/service"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login godoc
// @Summary Authenticate a user
// @Description Validates credentials and issues an access/refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope{data=models.LoginResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Refresh godoc
// @Summary Refresh the access token
// @Description Exchanges a valid refresh token for a new token pair; the used token is revoked
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope{data=models.RefreshTokenResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid refresh payload"))
		return
	}

	resp, err := h.authService.RefreshToken(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Logout godoc
// @Summary Log out
// @Description Revokes the presented refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RefreshTokenRequest true "Refresh token to revoke"
// @Success 204
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid logout payload"))
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Success 200 {object} response.Envelope{data=models.Principal}
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, principal, nil)
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ChangePasswordRequest true "Old and new password"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid change password payload"))
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ResetPassword godoc
// @Summary Reset another user's password
// @Description Admin-only direct password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResetPasswordRequest true "Target user and new password"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid reset password payload"))
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), principal, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// FirstAccess godoc
// @Summary Self-service account request
// @Description Creates a pending staff account that an admin must approve before login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.FirstAccessRequest true "Account details"
// @Success 201 {object} response.Envelope{data=models.User}
// @Failure 409 {object} response.Envelope
// @Router /auth/first-access [post]
func (h *AuthHandler) FirstAccess(c *gin.Context) {
	var req models.FirstAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "invalid first access payload"))
		return
	}

	user, err := h.authService.FirstAccess(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

type approveRequest struct {
	TempPassword string `json:"temp_password" binding:"required,min=6"`
}

// Approve godoc
// @Summary Approve a pending account
// @Description Activates a pending account and sets a temporary password
// @Tags auth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body approveRequest true "Temporary password"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/approve/{id} [post]
func (h *AuthHandler) Approve(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "temp_password is required (min 6 characters)"))
		return
	}

	if err := h.authService.Approve(c.Request.Context(), principal, c.Param("id"), req.TempPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
