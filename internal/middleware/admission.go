package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/admission"
)

// QueueTokenHeader carries the admission token on gated requests.
const QueueTokenHeader = "X-Queue-Token"

// queueTokenKey is the context key the gate stores the validated token under.
const queueTokenKey = "queue_token"

// RequireAdmission returns a middleware that lets a request through only
// with an ACTIVE admission token in the X-Queue-Token header.  WAITING
// holders are told their place in line; expired or unknown tokens must be
// re-issued.  The admission gate runs after JWTAuth, so gated handlers see
// both the user id and the token.
func RequireAdmission(svc *admission.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := strings.TrimSpace(c.Request().Header.Get(QueueTokenHeader))
			if value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "queue token required"})
			}
			tok, err := svc.ValidateActive(c.Request().Context(), value)
			if err != nil {
				switch {
				case errors.Is(err, admission.ErrTokenNotFound):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown queue token"})
				case errors.Is(err, admission.ErrTokenExpired):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "queue token expired"})
				case errors.Is(err, admission.ErrTokenNotActive):
					return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "still waiting in queue"})
				default:
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "queue check failed"})
				}
			}
			c.Set(queueTokenKey, tok)
			return next(c)
		}
	}
}

// AdmissionToken returns the validated token placed in the context by
// RequireAdmission.
func AdmissionToken(c echo.Context) (*admission.Token, bool) {
	tok, ok := c.Get(queueTokenKey).(*admission.Token)
	return tok, ok
}
