package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/ledger"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/middleware"
)

// BalanceHandler exposes the balance top-up and read endpoints.
type BalanceHandler struct {
	Ledger *ledger.Ledger
}

func NewBalanceHandler(l *ledger.Ledger) *BalanceHandler {
	return &BalanceHandler{Ledger: l}
}

type chargeReq struct {
	Amount int64 `json:"amount"`
}

// Charge credits the caller's balance and returns the new total.
func (h *BalanceHandler) Charge(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req chargeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	b, err := h.Ledger.Charge(c.Request().Context(), uid, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, lock.ErrNotAcquired):
			return c.JSON(http.StatusConflict, echo.Map{"error": "busy, try again", "retryable": true})
		default:
			log.Printf("[handler] charge: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "charge failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": b.UserID, "balance": b.Amount})
}

// Get returns the caller's balance; users without a row read as zero.
func (h *BalanceHandler) Get(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.Ledger.GetBalance(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read balance failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": b.UserID, "balance": b.Amount})
}
