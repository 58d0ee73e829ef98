package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/ride-share/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/ride-share/internal/middleware" // import middleware for JWT authentication
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Session-free operations: register, login, refresh, logout.  Logout
	// accepts either a refresh token in the body or a bearer header, so it
	// is mounted outside the JWT group.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token: the presented token is revoked and
	// a brand new access/refresh pair is issued.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// Protected endpoints require a valid access token.  All handlers on
	// this group run the JWTAuth middleware before being invoked.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	// GET /v1/me returns the authenticated user's profile.
	auth.GET("/me", a.Me)
	// PUT /v1/profile patches the caller's name and phone.
	auth.PUT("/profile", a.UpdateProfile)
}
