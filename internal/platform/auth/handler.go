package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"keytrack-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// RegisterRoutes: authn は RequireAuth。admin 系はさらに RequireRole(RoleAdmin) を通す
func RegisterRoutes(r gin.IRoutes, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	admin := RequireRole(RoleAdmin)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/forgot-password", h.ForgotPassword)

	r.GET("/users", authn, admin, h.ListUsers)
	r.POST("/admin/create-admin", authn, admin, h.CreateAdmin)
	r.DELETE("/admin/users/:id", authn, admin, h.DeleteAdmin)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request"))
		return
	}

	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request"))
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request"))
		return
	}
	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, reset instructions will be sent"})
}

func (h *Handler) ListUsers(c *gin.Context) {
	actor, _ := IdentityFrom(c)
	res, err := h.svc.ListUsers(c.Request.Context(), actor)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid request"))
		return
	}
	actor, _ := IdentityFrom(c)
	res, err := h.svc.CreateAdmin(c.Request.Context(), actor, req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.Header("Location", "/api/users/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) DeleteAdmin(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "id must be a positive number"))
		return
	}
	actor, _ := IdentityFrom(c)
	if err := h.svc.DeleteAdmin(c.Request.Context(), actor, id); err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
