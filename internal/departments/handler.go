package departments

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// 一覧は登録画面からも使うので公開
func RegisterRoutes(r gin.IRoutes, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.GET("/departments", h.List)
	r.POST("/departments", authn, auth.RequireRole(auth.RoleAdmin), h.Create)
}

func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context())
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "name is required"))
		return
	}
	actor, _ := auth.IdentityFrom(c)
	res, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
