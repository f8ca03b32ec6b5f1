package generate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/attachments"
	"applique-backend/internal/shared/server/middleware"
	"applique-backend/internal/shared/server/respond"
	"applique-backend/internal/shared/storage/object"
	"applique-backend/internal/shared/util"
	"applique-backend/internal/templates"
	"applique-backend/internal/variables"
)

const maxRequestSize = 1 << 20 // 1MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/preview", h.preview)
	rg.POST("/documents/generate", h.generate)
	rg.GET("/documents/download/:filename", h.download)
}

func (h *Handler) preview(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	out, err := h.Svc.Preview(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) generate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Svc.Generate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.GenerationIDKey, res.GenerationID)
	respond.Created(c, generateResponse{
		Result:      res,
		Message:     "document generated",
		DownloadURL: "/api/v1/documents/download/" + res.Filename,
	})
}

type generateResponse struct {
	Result
	Message     string `json:"message"`
	DownloadURL string `json:"downloadUrl"`
}

func (h *Handler) download(c *gin.Context) {
	raw := c.Param("filename")
	name, err := util.SanitizeFileName(raw)
	if err != nil || name != raw || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid filename", nil)
		return
	}
	reader, err := h.Svc.Store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "generated file not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load generated file", nil)
		return
	}
	defer reader.Close()

	respond.PDF(c, name, reader)
}

func writeError(c *gin.Context, err error) {
	var f *Failure
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &f):
		c.Set(middleware.StageKey, string(f.Stage))
		c.Set(middleware.DocumentKey, f.Document)
		respond.Error(c, failureStatus(f), string(f.Stage), f.Error(), gin.H{
			"stage":       f.Stage,
			"document":    f.Document,
			"diagnostics": f.Diagnostics,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusServiceUnavailable, "request_aborted", "request was cancelled before completion", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "document generation failed", nil)
	}
}

func failureStatus(f *Failure) int {
	switch f.Stage {
	case StageResolve:
		if errors.Is(f, templates.ErrNotFound) || errors.Is(f, attachments.ErrNotFound) || errors.Is(f, variables.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case StageRender, StageCompile:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
