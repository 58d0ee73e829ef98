package router

import (
	"github.com/iliyamo/ride-share/internal/handler"
	"github.com/iliyamo/ride-share/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRides registers every ride endpoint.  Browsing is public so
// riders can compare routes before signing up; everything that touches a
// roster or mutates a ride requires a valid JWT.  The cache middleware
// fronts only the public browse endpoints, where stale reads are
// harmless thanks to the short TTL.
func RegisterRides(e *echo.Echo, h *handler.RideHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	// ---- Public browse ----
	e.GET("/v1/rides", h.List, cache)
	e.GET("/v1/rides/:id", h.Get, cache)

	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
	)

	// ---- Ride CRUD (driver) ----
	g.POST("/rides", h.Create)
	g.PUT("/rides/:id", h.Update)
	g.DELETE("/rides/:id", h.Delete)

	// ---- Join lifecycle (rider) ----
	// Note: /rides/user and /rides/match are static segments; Echo ranks
	// them ahead of the :id parameter so there is no route conflict.
	g.POST("/rides/:id/join", h.Join)
	g.POST("/rides/:id/cancel", h.CancelRequest)
	g.POST("/rides/:id/leave", h.Leave)

	// ---- Request decision (driver) ----
	g.PUT("/rides/:id/passengers/:userId", h.Respond)

	// ---- Per-user views ----
	g.GET("/rides/user", h.UserRides)
	g.GET("/rides/user/offered", h.OfferedRides)
	g.GET("/rides/user/joined", h.JoinedRides)
	g.GET("/rides/user/pending", h.PendingRides)

	// ---- Route matching ----
	g.POST("/rides/match", h.Match)
}
