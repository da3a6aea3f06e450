// Package router wires the HTTP surface: health and Prometheus
// endpoints, the location tree routes and the sample custody routes,
// with auth, role and rate-limit middleware applied per group.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openlims/sample-storage/internal/handler"
	"github.com/openlims/sample-storage/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// the health check and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterStorage registers the storage API under /storage.  All
// routes pass through JWT verification (a no-op when jwtSecret is
// empty) and the shared rate limiter.  Location tree mutations require
// the LAB_MANAGER role; custody mutations accept LAB_TECH as well.
func RegisterStorage(e *echo.Echo, lh *handler.LocationHandler, sh *handler.StorageHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/storage")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limiter != nil {
		g.Use(limiter)
	}

	// Read endpoints are open to any authenticated caller.
	g.GET("/locations/search", lh.Search)
	g.GET("/:kind", lh.List)
	g.GET("/:kind/:id", lh.Get)
	g.GET("/:kind/:id/can-delete", lh.CanDelete)

	g.GET("/sample-items", sh.List)
	g.GET("/sample-items/search", sh.Search)
	g.GET("/sample-items/:id", sh.Get)
	g.GET("/sample-items/:id/movements", sh.Movements)
	g.GET("/metrics", sh.Metrics)

	// The location tree is managed by lab managers only.
	manage := middleware.RequireRole(middleware.RoleLabManager)
	g.POST("/:kind", lh.Create, manage)
	g.PUT("/:kind/:id", lh.Update, manage)
	g.DELETE("/:kind/:id", lh.Delete, manage)

	// Custody operations are day-to-day bench work.
	custody := middleware.RequireRole(middleware.RoleLabManager, middleware.RoleLabTech)
	g.POST("/sample-items", sh.Register, custody)
	g.POST("/sample-items/assign", sh.Assign, custody)
	g.POST("/sample-items/move", sh.Move, custody)
	g.PATCH("/sample-items/:id", sh.Patch, custody)
	g.POST("/sample-items/dispose", sh.Dispose, custody)
}
