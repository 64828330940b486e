// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/admission"
	"github.com/iliyamo/concert-reservation/internal/handler"
	"github.com/iliyamo/concert-reservation/internal/middleware"
)

// Handlers collects everything the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Admission   *handler.AdmissionHandler
	Reservation *handler.ReservationHandler
	Concert     *handler.ConcertHandler
	Balance     *handler.BalanceHandler
}

// Register mounts all routes on e.
//
// Route surface, outermost first:
//   - /healthz and the concert read side are public.
//   - /v1/auth handles registration and session management.
//   - Everything else requires a bearer token; reserve and pay additionally
//     require an ACTIVE admission token in X-Queue-Token.
func Register(e *echo.Echo, h Handlers, queue *admission.Service, jwtSecret string) {
	e.GET("/healthz", handler.Health)

	// Public read side: browsing never needs a session or a queue slot.
	e.GET("/v1/concerts/dates", h.Concert.Dates)
	e.GET("/v1/concerts/:date/seats", h.Concert.AvailableSeats)
	e.GET("/v1/concerts/ranking", h.Concert.SellOutRanking)

	// Session management.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	auth.POST("/logout", h.Auth.Logout)

	// Authenticated surface.
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.GET("/me", h.Auth.Me)
	// Bearer-authenticated logout revokes every session for the user; the
	// public /v1/auth/logout variant only revokes the presented refresh token.
	v1.POST("/logout", h.Auth.Logout)

	v1.POST("/queue/token", h.Admission.IssueToken)
	v1.GET("/queue/status", h.Admission.TokenStatus)

	v1.POST("/balance/charge", h.Balance.Charge)
	v1.GET("/balance", h.Balance.Get)

	v1.GET("/payments", h.Reservation.Payments)

	// The purchase path sits behind the admission gate.
	gated := v1.Group("", middleware.RequireAdmission(queue))
	gated.POST("/reservations", h.Reservation.Reserve)
	gated.POST("/reservations/:id/pay", h.Reservation.Pay)
}
