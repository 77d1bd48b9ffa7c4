// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arborlead-service/internal/domain/user"
	"arborlead-service/internal/middleware"
	"arborlead-service/internal/pkg/response"
	authsvc "arborlead-service/internal/service/auth"
)

type AuthHandler struct {
	authService *authsvc.AuthService
}

func NewAuthHandler(authService *authsvc.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid login payload", err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.DomainError(c, "login failed", err)
		return
	}
	response.Success(c, http.StatusOK, "logged in", resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid refresh payload", err)
		return
	}

	access, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.DomainError(c, "refresh failed", err)
		return
	}
	response.Success(c, http.StatusOK, "token refreshed", gin.H{"access_token": access})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	jti := middleware.MustGetJTI(c)
	if err := h.authService.Logout(c.Request.Context(), jti); err != nil {
		response.DomainError(c, "logout failed", err)
		return
	}
	response.Success(c, http.StatusOK, "logged out", nil)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	u, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		response.DomainError(c, "failed to load account", err)
		return
	}
	response.Success(c, http.StatusOK, "account", u)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req user.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid password payload", err)
		return
	}

	userID := middleware.MustGetUserID(c)
	if err := h.authService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		response.DomainError(c, "password change failed", err)
		return
	}
	response.Success(c, http.StatusOK, "password changed", nil)
}

// CreatePartner registers a partner account. Admin only.
func (h *AuthHandler) CreatePartner(c *gin.Context) {
	var req user.CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid partner payload", err)
		return
	}

	u, err := h.authService.CreatePartner(c.Request.Context(), &req)
	if err != nil {
		response.DomainError(c, "failed to create partner", err)
		return
	}
	response.Success(c, http.StatusCreated, "partner created", u)
}
