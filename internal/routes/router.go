package routes

import (
	"github.com/gin-gonic/gin"

	"stokmanager/internal/config"
	"stokmanager/internal/delivery/http/handler"
	"stokmanager/internal/events"
	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	"stokmanager/internal/middleware"
	"stokmanager/internal/store"
	"stokmanager/internal/usecase/attendance"
	"stokmanager/internal/usecase/device"
	"stokmanager/internal/usecase/inventory"
	"stokmanager/internal/usecase/presence"
	"stokmanager/internal/usecase/scan"
)

// Dependencies are the constructed services the HTTP layer exposes.
type Dependencies struct {
	Store       store.Store
	Bus         *events.Bus
	Metrics     *metrics.Tracker
	RateLimiter *middleware.RateLimiter

	Devices    *device.Service
	Scans      *scan.Service
	Inventory  *inventory.Service
	Attendance *attendance.Service
	Reconciler *presence.Reconciler
}

func SetupRoutes(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Order: recovery, request ID, logging, security headers, CORS, request size limit, rate limit.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxRequestBytes))
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	deviceHandler := handler.NewDeviceHandler(deps.Devices, deps.Reconciler)
	streamHandler := handler.NewDeviceStreamHandler(deps.Bus)
	scanHandler := handler.NewScanHandler(deps.Scans)
	inventoryHandler := handler.NewInventoryHandler(deps.Inventory)
	attendanceHandler := handler.NewAttendanceHandler(deps.Attendance)
	healthHandler := handler.NewHealthHandler(deps.Store, deps.Metrics)

	healthHandler.RegisterRoutes(router)
	router.OPTIONS("/*path", middleware.PreflightHandler(&cfg.CORS))

	api := router.Group("/api")
	{
		deviceHandler.RegisterDeviceRoutes(api)
		deviceHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		scanHandler.RegisterRoutes(api)
		inventoryHandler.RegisterRoutes(api)
		attendanceHandler.RegisterRoutes(api)

		cron := api.Group("")
		cron.Use(middleware.CronSecretMiddleware(cfg.Auth.CronSecret))
		{
			deviceHandler.RegisterCronRoutes(cron)
		}

		admin := api.Group("")
		if cfg.Auth.JWTSecret != "" {
			admin.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret), middleware.AdminOnly())
		} else {
			logger.Warn("AUTH_JWT_SECRET is not set, inventory writes are unauthenticated")
		}
		{
			inventoryHandler.RegisterAdminRoutes(admin)
		}
	}

	logger.Info("All routes initialized")
	return router
}
