package reports

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	admin := auth.RequireRole(auth.RoleAdmin)

	r.GET("/activity", authn, admin, h.Activity)
	r.POST("/reports", authn, admin, h.Generate)
}

func (h *Handler) Activity(c *gin.Context) {
	actor, _ := auth.IdentityFrom(c)
	res, err := h.svc.RecentActivity(c.Request.Context(), actor)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /reports: 生の行を JSON 添付ファイルとして返す
func (h *Handler) Generate(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "type is required"))
		return
	}
	actor, _ := auth.IdentityFrom(c)
	rep, err := h.svc.Generate(c.Request.Context(), actor, req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	name := fmt.Sprintf("key-report-%s-%s.json", rep.Type, rep.GeneratedAt.Format("20060102T150405Z"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.JSON(http.StatusOK, rep)
}
