package engagement

import (
	"net/http"

	"fundwave/pkg/db/pagination"
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
	g := r.API.Group("/campaigns/:id")
	g.GET("/comments", h.ListComments)
	g.POST("/comments", middleware.RequireAuth(), h.AddComment)
	g.GET("/updates", h.ListUpdates)
	g.POST("/updates", middleware.RequireAuth(), h.PostUpdate)
}

func (h *Handler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) ListComments(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	comments, info, err := h.svc.Comments(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": comments, "pageInfo": info})
}

func (h *Handler) PostUpdate(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	u, err := h.svc.PostUpdate(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUpdates(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	updates, info, err := h.svc.Updates(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updates, "pageInfo": info})
}
