package router

import (
	"fmt"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/concert-reservation/internal/handler"
)

func registeredRoutes(t *testing.T) map[string]bool {
	t.Helper()
	e := echo.New()
	h := Handlers{
		Auth:        &handler.AuthHandler{},
		Admission:   &handler.AdmissionHandler{},
		Reservation: &handler.ReservationHandler{},
		Concert:     &handler.ConcertHandler{},
		Balance:     &handler.BalanceHandler{},
	}
	Register(e, h, nil, "test-secret")

	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[fmt.Sprintf("%s %s", r.Method, r.Path)] = true
	}
	return routes
}

func TestRegisterMountsExpectedRoutes(t *testing.T) {
	routes := registeredRoutes(t)

	for _, want := range []string{
		"GET /healthz",
		"GET /v1/concerts/dates",
		"GET /v1/concerts/:date/seats",
		"GET /v1/concerts/ranking",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/refresh-access",
		"POST /v1/auth/logout",
		"GET /v1/me",
		"POST /v1/logout",
		"POST /v1/queue/token",
		"GET /v1/queue/status",
		"POST /v1/balance/charge",
		"GET /v1/balance",
		"POST /v1/reservations",
		"POST /v1/reservations/:id/pay",
		"GET /v1/payments",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

// Logout is reachable both anonymously (revoke one refresh token) and behind
// the bearer middleware (revoke every session for the authenticated user).
func TestLogoutMountedOnBothSurfaces(t *testing.T) {
	routes := registeredRoutes(t)

	assert.True(t, routes["POST /v1/auth/logout"])
	assert.True(t, routes["POST /v1/logout"])
}
