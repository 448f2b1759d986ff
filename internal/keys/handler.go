package keys

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes: すべて認証必須。stats と delete は admin のみ
func RegisterRoutes(r gin.IRoutes, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	admin := auth.RequireRole(auth.RoleAdmin)

	r.GET("/keys", authn, h.List)
	r.POST("/keys", authn, h.Create)
	r.GET("/keys/stats", authn, admin, h.Stats)
	r.GET("/keys/:id", authn, h.Get)
	r.PUT("/keys/:id", authn, h.Edit)
	r.DELETE("/keys/:id", authn, admin, h.Delete)

	// 貸出・返却
	r.POST("/keys/:id/assign", authn, h.Assign)
	r.POST("/keys/:id/return", authn, h.Return)
	r.GET("/keys/:id/history", authn, h.History)
}

// ---------- handlers ----------

func (h *Handler) List(c *gin.Context) {
	f := Filter{}
	if v := c.Query("status"); v != "" {
		st := Status(v)
		f.Status = &st
	}
	if v := c.Query("department"); v != "" {
		f.Department = &v
	}
	if v := c.Query("q"); v != "" {
		f.Search = &v
	}
	res, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /keys
func (h *Handler) Create(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.Header("Location", "/api/keys/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PUT /keys/:id
func (h *Handler) Edit(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	actor, _ := auth.IdentityFrom(c)
	res, err := h.svc.Edit(c.Request.Context(), actor, id, req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	actor, _ := auth.IdentityFrom(c)
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// POST /keys/:id/assign
func (h *Handler) Assign(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "person is required"))
		return
	}
	actor, _ := auth.IdentityFrom(c)
	res, err := h.svc.Assign(c.Request.Context(), actor, id, req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /keys/:id/return
func (h *Handler) Return(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	// body は省略可
	var req ReturnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
			return
		}
	}
	actor, _ := auth.IdentityFrom(c)
	res, err := h.svc.Return(c.Request.Context(), actor, id, req)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) History(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	res, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /keys/stats
func (h *Handler) Stats(c *gin.Context) {
	actor, _ := auth.IdentityFrom(c)
	res, err := h.svc.Stats(c.Request.Context(), actor)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func keyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "id must be a positive number"))
		return 0, false
	}
	return id, true
}
