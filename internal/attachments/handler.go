package attachments

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/shared/server/respond"
)

// Handler exposes the attachment catalog over HTTP.
type Handler struct {
	Catalog *Catalog
}

// NewHandler constructs a Handler.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{Catalog: catalog}
}

// RegisterRoutes attaches attachment routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/attachments", h.list)
}

func (h *Handler) list(c *gin.Context) {
	entries, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list attachments", nil)
		return
	}
	respond.OK(c, gin.H{"attachments": entries})
}
