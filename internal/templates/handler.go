package templates

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/shared/server/respond"
)

const maxTemplateSize = 1 << 20 // 1MB

// Handler wires HTTP handlers to the store.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches template routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/templates/:kind", h.list)
	rg.GET("/templates/:kind/:name", h.get)
	rg.PUT("/templates/:kind/:name", h.save)
	rg.DELETE("/templates/:kind/:name", h.reset)
}

type saveRequest struct {
	Content *string `json:"content"`
}

func (h *Handler) list(c *gin.Context) {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	entries, err := h.Store.List(c.Request.Context(), kind)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list templates", nil)
		return
	}
	respond.OK(c, gin.H{"kind": kind, "templates": entries})
}

func (h *Handler) get(c *gin.Context) {
	ref, ok := h.ref(c)
	if !ok {
		return
	}
	detail, err := h.Store.Detail(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err, "failed to read template")
		return
	}
	respond.OK(c, detail)
}

func (h *Handler) save(c *gin.Context) {
	ref, ok := h.ref(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTemplateSize)

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "content is required", nil)
		return
	}
	if err := h.Store.Save(c.Request.Context(), ref, *req.Content); err != nil {
		writeError(c, err, "failed to save template")
		return
	}
	detail, err := h.Store.Detail(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err, "failed to read template")
		return
	}
	respond.OK(c, detail)
}

func (h *Handler) reset(c *gin.Context) {
	ref, ok := h.ref(c)
	if !ok {
		return
	}
	res, err := h.Store.Reset(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err, "failed to reset template")
		return
	}
	message := "template reset to default"
	if !res.Customized {
		message = "template was not customized"
	}
	respond.OK(c, gin.H{"ref": res.Ref, "wasCustomized": res.Customized, "message": message})
}

func (h *Handler) ref(c *gin.Context) (Ref, bool) {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return Ref{}, false
	}
	ref, err := NewRef(kind, c.Param("name"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return Ref{}, false
	}
	return ref, true
}

func writeError(c *gin.Context, err error, fallback string) {
	var resErr *ResolutionError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ErrMalformed):
		respond.Error(c, http.StatusUnprocessableEntity, "malformed_template", err.Error(), nil)
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidKind):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &resErr):
		respond.Error(c, http.StatusUnprocessableEntity, "resolution_failed", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
