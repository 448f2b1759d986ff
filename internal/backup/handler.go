package backup

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.POST("/backup", authn, auth.RequireRole(auth.RoleAdmin), h.Download)
}

// POST /backup: 一時ディレクトリに書き出して添付で返し、送信後に消す
func (h *Handler) Download(c *gin.Context) {
	dir, err := os.MkdirTemp("", "keytrack-backup-*")
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	defer os.RemoveAll(dir)

	name := h.svc.FileName()
	dst := filepath.Join(dir, name)

	actor, _ := auth.IdentityFrom(c)
	if err := h.svc.WriteFile(c.Request.Context(), actor, dst); err != nil {
		apperr.Abort(c, err)
		return
	}
	c.FileAttachment(dst, name)
}
