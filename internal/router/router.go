package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/bus-dispatch-api/internal/handler"
	"github.com/noah-isme/bus-dispatch-api/internal/middleware"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	"github.com/noah-isme/bus-dispatch-api/internal/service"
	"github.com/noah-isme/bus-dispatch-api/pkg/config"
	"github.com/noah-isme/bus-dispatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/bus-dispatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/bus-dispatch-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Assignments *handler.AssignmentHandler
	Clearance   *handler.ClearanceHandler
	Metrics     *handler.MetricsHandler
}

// Setup builds the gin engine with global middleware and the dispatch API.
func Setup(cfg *config.Config, h Handlers, tokens middleware.TokenValidator, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleOfficer)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleOfficer, models.RoleDriver, models.RoleConductor)
	crew := middleware.RequireRoles(models.RoleDriver, models.RoleConductor)
	submitters := middleware.RequireRoles(models.RoleAdmin, models.RoleDriver, models.RoleConductor)

	api := r.Group(prefix(cfg))
	api.Use(middleware.JWT(tokens))
	{
		assignments := api.Group("/assignments")
		{
			assignments.POST("", staff, middleware.Audit(logr, "assignment.create"), h.Assignments.Create)
			assignments.GET("", staff, h.Assignments.List)
			assignments.GET("/current", crew, h.Assignments.Current)
			assignments.GET("/:id", anyRole, h.Assignments.Get)
			assignments.POST("/:id/transition", staff, middleware.Audit(logr, "assignment.transition"), h.Assignments.Transition)
			assignments.POST("/:id/position", anyRole, middleware.Audit(logr, "assignment.position"), h.Assignments.Position)
			assignments.GET("/:id/trip-sheet", staff, h.Assignments.TripSheet)
			assignments.POST("/:id/requests", submitters, middleware.Audit(logr, "request.submit"), h.Clearance.Submit)
		}

		requests := api.Group("/requests")
		{
			requests.GET("", anyRole, h.Clearance.List)
			requests.GET("/:id", anyRole, h.Clearance.Get)
			requests.POST("/:id/resolve", staff, middleware.Audit(logr, "request.resolve"), h.Clearance.Resolve)
		}
	}

	return r
}

func prefix(cfg *config.Config) string {
	if cfg.APIPrefix == "" {
		return "/api/v1"
	}
	return cfg.APIPrefix
}
