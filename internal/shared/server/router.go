package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/attachments"
	"applique-backend/internal/generate"
	"applique-backend/internal/generations"
	"applique-backend/internal/services/health"
	"applique-backend/internal/shared/config"
	"applique-backend/internal/shared/metrics"
	"applique-backend/internal/shared/server/middleware"
	"applique-backend/internal/shared/server/respond"
	"applique-backend/internal/templates"
)

// RouterDeps holds handler dependencies for routing. Nil handlers are skipped.
type RouterDeps struct {
	Config             config.Config
	Health             *health.Service
	TemplateHandler    *templates.Handler
	AttachmentHandler  *attachments.Handler
	GenerateHandler    *generate.Handler
	GenerationsHandler *generations.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{Rules: rateRules(deps.Config)}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", metrics.Handler())

	if deps.TemplateHandler != nil {
		deps.TemplateHandler.RegisterRoutes(api)
	}
	if deps.AttachmentHandler != nil {
		deps.AttachmentHandler.RegisterRoutes(api)
	}
	if deps.GenerateHandler != nil {
		deps.GenerateHandler.RegisterRoutes(api)
	}
	if deps.GenerationsHandler != nil {
		deps.GenerationsHandler.RegisterRoutes(api)
	}

	return r
}

func rateRules(cfg config.Config) map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		middleware.GroupGenerate: {Rate: cfg.GenerateRatePerMin / 60, Burst: cfg.GenerateBurst},
		middleware.GroupPreview:  {Rate: cfg.PreviewRatePerMin / 60, Burst: cfg.PreviewBurst},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
