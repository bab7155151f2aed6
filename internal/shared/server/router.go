package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/activity"
	"docqr-backend/internal/documents"
	"docqr-backend/internal/notify"
	"docqr-backend/internal/services/health"
	"docqr-backend/internal/shared/config"
	"docqr-backend/internal/shared/metrics"
	"docqr-backend/internal/shared/server/middleware"
	"docqr-backend/internal/shared/server/respond"
)

const uploadRateGroup = "UPLOAD"

// RouterDeps collects the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	ActivityHandler *activity.Handler
	Hub             *notify.Hub
	Health          *health.Service
	Documents       documentCounter
	Broker          *notify.Broker
	// Limiter is shared across router instances in tests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	root := r.Group("/api")
	root.GET("/health", func(c *gin.Context) {
		st := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !st.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, st)
	})

	public := root.Group("", middleware.OptionalAuth())
	api := root.Group("", middleware.Auth())
	admin := root.Group("/admin", middleware.Auth(), middleware.RequireAdmin())

	registerMeRoutes(api, deps.Documents, deps.Broker)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api, uploadRateLimit(deps))
		deps.DocumentHandler.RegisterAdminRoutes(admin)
		deps.DocumentHandler.RegisterPublicRoutes(public)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.RegisterRoutes(api)
	}
	if deps.Hub != nil {
		hubs := r.Group("", middleware.Auth())
		deps.Hub.RegisterRoutes(hubs)
	}

	return r
}

func uploadRateLimit(deps RouterDeps) gin.HandlerFunc {
	perMinute := deps.Config.UploadsPerMinute
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(time.Now)
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			uploadRateGroup: {Rate: float64(perMinute) / 60.0, Burst: perMinute},
		},
		DefaultGroup: uploadRateGroup,
		Limiter:      limiter,
	})
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
