// Package router assembles the Gin engine for the media transform service,
// wiring the transform, upload, storage, and queue handlers behind the
// teacher's ambient middleware stack.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"mediaforge/internal/auth"
	"mediaforge/internal/config"
	"mediaforge/internal/database"
	"mediaforge/internal/handlers"
	"mediaforge/internal/jobs"
	"mediaforge/internal/middleware"
)

// Deps bundles every handler the router wires in, built by cmd/server/main.go.
type Deps struct {
	DB            *database.DB
	Transform     *handlers.TransformHandler
	Upload        *handlers.UploadHandler
	Storage       *handlers.StorageHandler
	Queue         *handlers.QueueHandler
	Events        *handlers.EventsHandler
	JobStore      *jobs.Store
	Authenticator auth.Authenticator
}

// Setup builds the full Gin engine.
func Setup(deps Deps) *gin.Engine {
	r := setupBaseRouter()

	r.GET("/health", healthCheck(deps.DB))
	r.GET("/api", apiDocumentation())

	// Transform surface: unsigned and HMAC-signed derivative requests. The
	// signed prefix is split into static/param/wildcard segments ("/s/:sig/")
	// rather than a single "s--<sig>" segment, since gin's router (like the
	// httprouter it descends from) cannot mix a literal prefix and a named
	// param within one path segment.
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		r.Handle(method, "/t/*rest", deps.Transform.Unsigned)
		r.Handle(method, "/s/:sig/*rest", deps.Transform.Signed)
	}

	protected := r.Group("/")
	protected.Use(auth.RequireAuth(deps.Authenticator))
	{
		protected.POST("/upload", deps.Upload.Upload)

		protected.GET("/storage/*path", deps.Storage.List)
		protected.POST("/storage/invalidate", deps.Storage.Invalidate)
		protected.DELETE("/storage", deps.Storage.Delete)

		queue := protected.Group("/queue")
		{
			queue.GET("/stats", deps.Queue.Stats)
			queue.GET("/jobs/:id", deps.Queue.Get)
			queue.POST("/jobs/:id/retry", deps.Queue.Retry)
			queue.POST("/jobs/:id/cancel", deps.Queue.Cancel)
			queue.DELETE("/jobs/:id", deps.Queue.Delete)
		}
	}

	// SSE progress stream is read-only and long-lived; left open like the
	// transform surface rather than behind the bearer-token gate.
	r.GET("/queue/events", deps.Events.Stream)

	return r
}

func setupBaseRouter() *gin.Engine {
	r := gin.New()

	r.Use(otelgin.Middleware("mediaforge"))
	r.Use(middleware.Observability())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit())

	// Reject proxy headers unless explicitly trusted, preventing IP spoofing.
	r.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Authorization", "Accept", "User-Agent", "Cache-Control", "Pragma",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	return r
}

func healthCheck(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy", "error": err.Error(), "timestamp": time.Now().Unix(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
	}
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "mediaforge",
			"version": "1.0",
			"endpoints": map[string]string{
				"transform":        "GET|HEAD /t/<transformations>/<filepath>",
				"signed_transform": "GET|HEAD /s/<signature>/<transformations>/<filepath>",
				"upload":           "POST /upload",
				"storage_list":     "GET /storage/<prefix>",
				"invalidate":       "POST /storage/invalidate?path=...",
				"delete":           "DELETE /storage?path=...",
				"queue_stats":      "GET /queue/stats",
				"queue_job":        "GET /queue/jobs/:id",
				"queue_retry":      "POST /queue/jobs/:id/retry",
				"queue_cancel":     "POST /queue/jobs/:id/cancel",
				"queue_delete":     "DELETE /queue/jobs/:id",
				"queue_events":     "GET /queue/events (SSE)",
				"health":           "GET /health",
			},
		})
	}
}
