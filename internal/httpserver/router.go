package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"contracttracker/internal/handler"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Handlers groups the API handlers mounted by NewRouter.
type Handlers struct {
	Baseline    *handler.BaselineHandler
	Certificate *handler.CertificateHandler
	Edit        *handler.EditHandler
	Variation   *handler.VariationHandler
	Plan        *handler.PlanHandler
	// Admin is optional; the outbox replay routes are mounted only when set.
	Admin *handler.AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	serviceName string,
	h Handlers,
	jwtSecret string,
	readiness map[string]ReadinessCheck,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(TraceMiddleware())
	r.Use(RequestLogger(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for name, check := range readiness {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/milestones/:id/baseline", h.Baseline.Get)
		auth.POST("/milestones/:id/baseline/sign", h.Baseline.Sign)
		auth.POST("/milestones/:id/baseline/reset", h.Baseline.Reset)

		auth.GET("/milestones/:id/certificate", h.Certificate.State)
		auth.POST("/milestones/:id/certificate", h.Certificate.Generate)
		auth.POST("/certificates/:id/sign", h.Certificate.Sign)

		auth.POST("/edits", h.Edit.Apply)

		auth.POST("/variations/draft", h.Variation.Draft)
		auth.POST("/variations/draft-batch", h.Variation.DraftBatch)

		auth.POST("/projects/:id/plan/commit", h.Plan.Commit)

		if h.Admin != nil {
			auth.POST("/admin/outbox/replay", h.Admin.ReplayOutboxEvent)
			auth.POST("/admin/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

// Server wraps the router in an http.Server so main can shut it down gracefully.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
