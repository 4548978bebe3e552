package kyc

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"fundwave/pkg/errutil"
	"fundwave/pkg/httpapi"
	"fundwave/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// maxBody leaves room for both files plus the text fields.
const maxBody = 2*MaxFileSize + 1<<20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	g := r.API.Group("/kyc", middleware.RequireAuth())
	g.POST("", h.Submit)
	g.GET("", h.Status)

	a := r.Admin.Group("/kyc")
	a.POST("/:userId/approve", h.Approve)
	a.POST("/:userId/reject", h.Reject)
}

func (h *Handler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	if err := c.Request.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(errutil.BadRequest("files must be at most 5MB each", err))
			return
		}
		_ = c.Error(errutil.BadRequest("invalid multipart body", err))
		return
	}
	defer c.Request.MultipartForm.RemoveAll()

	profile, closeProfile, err := formFile(c, "profilePicture")
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closeProfile()

	document, closeDocument, err := formFile(c, "documentPhoto")
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closeDocument()

	age, _ := strconv.Atoi(c.PostForm("age"))
	req := SubmitRequest{
		Address:        c.PostForm("address"),
		District:       c.PostForm("district"),
		DocumentType:   c.PostForm("documentType"),
		DocumentNumber: c.PostForm("documentNumber"),
		Occupation:     c.PostForm("occupation"),
		Nationality:    c.PostForm("nationality"),
		Age:            age,
	}

	u, err := h.svc.Submit(c.Request.Context(), middleware.Identity(c).UserID, req, profile, document)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "kyc submitted", "user": u})
}

func (h *Handler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Approve(c *gin.Context) {
	u, err := h.svc.Approve(c.Request.Context(), c.Param("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) Reject(c *gin.Context) {
	u, err := h.svc.Reject(c.Request.Context(), c.Param("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// formFile opens an optional multipart file. A missing part yields an empty
// File so the service reports it in its own order.
func formFile(c *gin.Context, field string) (File, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return File{Field: field}, noop, nil
	}
	if err != nil {
		return File{}, noop, errutil.BadRequest("invalid "+field, err)
	}

	var f multipart.File
	if f, err = fh.Open(); err != nil {
		return File{}, noop, err
	}
	return File{
		Field:       field,
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}, func() { _ = f.Close() }, nil
}
