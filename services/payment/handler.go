package payment

import (
	"encoding/json"
	"net/http"

	"fundwave/pkg/config"
	"fundwave/pkg/errutil"
	"fundwave/pkg/httpapi"
	"fundwave/pkg/middleware"
	"fundwave/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

type Handler struct {
	svc *Service
	cfg *config.Config
}

func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	g := r.API.Group("/payments")
	g.POST("/code", h.IssueCode)
	g.POST("/webhook", h.Webhook)
	g.GET("/:id/qr", h.QR)
	g.POST("/:id/sync", h.Sync)

	r.API.GET("/campaigns/:id/progress", h.Progress)
}

func (h *Handler) IssueCode(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.FromBinding(err))
		return
	}

	var donorID string
	if id := middleware.Identity(c); id != nil {
		donorID = id.UserID
	}

	res, err := h.svc.IssuePaymentCode(c.Request.Context(), donorID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		_ = c.Error(errutil.BadRequest("unreadable body", err))
		return
	}

	if secret := h.cfg.Monime.WebhookSecret; secret != "" {
		if !security.VerifyHMAC(secret, body, c.GetHeader(signatureHeader)) {
			zap.L().Warn("webhook signature mismatch", zap.String("remote_ip", c.ClientIP()))
			_ = c.Error(errutil.Unauthorized("invalid signature", nil))
			return
		}
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		_ = c.Error(errutil.BadRequest("malformed body", err))
		return
	}

	res, err := h.svc.ConfirmPayment(c.Request.Context(), ev)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Sync(c *gin.Context) {
	res, err := h.svc.SyncPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) QR(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if p.USSDCode == "" {
		_ = c.Error(errutil.NotFound("payment has no code", nil))
		return
	}

	png, err := qrcode.Encode(p.USSDCode, qrcode.Medium, 256)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) Progress(c *gin.Context) {
	p, err := h.svc.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}
