package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/medichain/medichain-api/internal/handler/admin"
	"github.com/medichain/medichain-api/internal/handler/auth"
	"github.com/medichain/medichain-api/internal/handler/doctor"
	"github.com/medichain/medichain-api/internal/handler/health"
	"github.com/medichain/medichain-api/internal/handler/patient"
	"github.com/medichain/medichain-api/internal/middleware"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/pkg/metrics"
)

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    *auth.Handler
	adminH   *admin.Handler
	doctorH  *doctor.Handler
	patientH *patient.Handler
	healthH  *health.Handler
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	authMw *middleware.AuthMiddleware,
	authH *auth.Handler,
	adminH *admin.Handler,
	doctorH *doctor.Handler,
	patientH *patient.Handler,
	healthH *health.Handler,
	m *metrics.Metrics,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(m),
		middleware.ErrorHandler(),
		middleware.Timeout(middleware.DefaultTimeoutConfig()),
		middleware.CORS(config.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:   engine,
		auth:     authMw,
		authH:    authH,
		adminH:   adminH,
		doctorH:  doctorH,
		patientH: patientH,
		healthH:  healthH,
	}
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	// Public routes
	r.authH.RegisterRoutes(api)

	// Protected routes, split by role
	adminGroup := api.Group("")
	adminGroup.Use(r.auth.Authenticate(), r.auth.RequireRole(model.RoleAdmin))
	r.adminH.RegisterRoutes(adminGroup)

	doctorGroup := api.Group("")
	doctorGroup.Use(r.auth.Authenticate(), r.auth.RequireRole(model.RoleDoctor))
	r.doctorH.RegisterRoutes(doctorGroup)

	patientGroup := api.Group("")
	patientGroup.Use(r.auth.Authenticate(), r.auth.RequireRole(model.RolePatient))
	r.patientH.RegisterRoutes(patientGroup)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
