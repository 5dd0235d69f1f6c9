package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/gin-gonic/gin"
)

type signupReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type roleReq struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email & password required"})
		return
	}

	session, err := h.sessions.Signup(c.Request.Context(), services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email & password required"})
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *Handler) Logout(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), claims.UserID()); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Me(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	me, err := h.sessions.Me(c.Request.Context(), claims.UserID())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, me)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) SetRole(c *gin.Context) {
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role required"})
		return
	}

	if err := h.admin.SetRole(c.Request.Context(), c.Param("id"), req.Role); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// writeError maps service errors onto HTTP statuses. Internal details are
// logged, never returned.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, common.ErrorInternal.Error()

	switch {
	case errors.Is(err, common.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorAlreadyExists):
		status, msg = http.StatusConflict, "user with this email already exists"
	case errors.Is(err, common.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrTokenRevoked):
		status, msg = http.StatusUnauthorized, "refresh token reused or revoked"
	case errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrVersionConflict):
		status, msg = http.StatusConflict, "refresh token was rotated concurrently"
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "not found"
	default:
		h.logger.Error(c.Request.Context(), err.Error())
	}

	c.JSON(status, gin.H{"error": msg})
}
