package campaign

import (
	"net/http"

	"fundwave/pkg/errutil"
	"fundwave/pkg/httpapi"
	"fundwave/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	g := r.API.Group("/campaigns")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", middleware.RequireAuth(), h.Create)

	a := r.Admin.Group("/campaigns")
	a.PATCH("/:id/status", h.UpdateStatus)
	a.GET("/:id/audit", h.Audit)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	campaign, err := h.svc.Create(c.Request.Context(), middleware.Identity(c).UserID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	campaigns, info, err := h.svc.List(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": campaigns, "pageInfo": info})
}

func (h *Handler) Get(c *gin.Context) {
	campaign, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	campaign, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (h *Handler) Audit(c *gin.Context) {
	report, err := h.svc.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}
