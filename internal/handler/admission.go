package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/admission"
	"github.com/iliyamo/concert-reservation/internal/middleware"
)

// AdmissionHandler exposes the waiting-queue endpoints.
type AdmissionHandler struct {
	Queue *admission.Service
}

func NewAdmissionHandler(q *admission.Service) *AdmissionHandler {
	return &AdmissionHandler{Queue: q}
}

// IssueToken hands the caller an admission token.  Re-issuing while a live
// token exists returns that same token, so refresh-spamming the button does
// not move anyone up or down the line.
func (h *AdmissionHandler) IssueToken(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tok, err := h.Queue.Issue(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusCreated, tok)
}

// TokenStatus reports the caller's latest token: ACTIVE, or WAITING with a
// 1-based position in line.
func (h *AdmissionHandler) TokenStatus(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tok, err := h.Queue.Status(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, admission.ErrTokenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no queue token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status failed"})
	}
	return c.JSON(http.StatusOK, tok)
}
