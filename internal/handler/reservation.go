package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/admission"
	"github.com/iliyamo/concert-reservation/internal/ledger"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/middleware"
	"github.com/iliyamo/concert-reservation/internal/repository"
	"github.com/iliyamo/concert-reservation/internal/reservation"
)

// ReservationHandler exposes the hold and pay endpoints.  Both sit behind
// the admission gate.
type ReservationHandler struct {
	Reservations *reservation.Service
	Queue        *admission.Service
}

func NewReservationHandler(r *reservation.Service, q *admission.Service) *ReservationHandler {
	return &ReservationHandler{Reservations: r, Queue: q}
}

type reserveReq struct {
	ConcertDate string `json:"concert_date"`
	SeatNumber  int    `json:"seat_number"`
}

type payReq struct {
	Amount int64 `json:"amount"`
}

// Reserve places a five-minute hold on one seat.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	res, err := h.Reservations.Reserve(c.Request().Context(), uid, req.ConcertDate, req.SeatNumber)
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"concert_date":   req.ConcertDate,
		"seat_number":    req.SeatNumber,
		"status":         res.Status,
		"expires_at":     res.ExpiresAt,
	})
}

// Pay settles a held reservation.  On success the caller's admission token
// is marked DONE, which frees their slot for the next waiter.
func (h *ReservationHandler) Pay(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req payReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	payment, err := h.Reservations.Pay(c.Request().Context(), reservationID, uid, req.Amount)
	if err != nil {
		return reservationError(c, err)
	}

	if tok, ok := middleware.AdmissionToken(c); ok {
		if err := h.Queue.Complete(c.Request().Context(), tok.Value); err != nil {
			log.Printf("[handler] complete queue token for user %d: %v", uid, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"payment_id":     payment.ID,
		"reservation_id": payment.ReservationID,
		"amount":         payment.Amount,
		"paid_at":        payment.PaidAt,
	})
}

// Payments returns the caller's payment history, most recent first.
func (h *ReservationHandler) Payments(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	history, err := h.Reservations.PaymentsByUser(c.Request().Context(), uid)
	if err != nil {
		log.Printf("[handler] payment history for user %d: %v", uid, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": history})
}

// reservationError maps domain errors onto HTTP responses.  Lock contention
// is a retryable 409; the client is expected to try the whole operation
// again.
func reservationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, reservation.ErrInvalidDate),
		errors.Is(err, reservation.ErrInvalidSeatNumber),
		errors.Is(err, ledger.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, lock.ErrNotAcquired):
		return c.JSON(http.StatusConflict, echo.Map{"error": "busy, try again", "retryable": true})
	case errors.Is(err, reservation.ErrSeatUnavailable),
		errors.Is(err, reservation.ErrInvalidState),
		errors.Is(err, reservation.ErrReservationExpired):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrReservationMismatch):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, repository.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	default:
		log.Printf("[handler] reservation: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
