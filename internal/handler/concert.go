package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/cache"
	"github.com/iliyamo/concert-reservation/internal/ranking"
	"github.com/iliyamo/concert-reservation/internal/reservation"
)

// ConcertHandler serves the read side: dates, seat availability and the
// sold-out ranking.
type ConcertHandler struct {
	Reservations *reservation.Service
	Availability *cache.Availability
	Ranking      *ranking.Board
}

func NewConcertHandler(r *reservation.Service, a *cache.Availability, b *ranking.Board) *ConcertHandler {
	return &ConcertHandler{Reservations: r, Availability: a, Ranking: b}
}

// Dates lists every concert date with a seat pool.
func (h *ConcertHandler) Dates(c echo.Context) error {
	dates, err := h.Reservations.Dates(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list dates failed"})
	}
	if dates == nil {
		dates = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"dates": dates})
}

// AvailableSeats returns the free seat numbers for one date, serving from
// the cache when it is warm and refilling it from the database on a miss.
func (h *ConcertHandler) AvailableSeats(c echo.Context) error {
	ctx := c.Request().Context()
	date := c.Param("date")

	if seats, ok := h.Availability.Get(ctx, date); ok {
		return c.JSON(http.StatusOK, echo.Map{"concert_date": date, "seats": seats, "cached": true})
	}

	seats, err := h.Reservations.AvailableSeats(ctx, date)
	if err != nil {
		return reservationError(c, err)
	}
	if seats == nil {
		seats = []int{}
	}
	h.Availability.Set(ctx, date, seats)
	return c.JSON(http.StatusOK, echo.Map{"concert_date": date, "seats": seats, "cached": false})
}

// SellOutRanking returns the most sold-out dates, best first.  The optional
// ?limit= parameter caps the list; it defaults to 10.
func (h *ConcertHandler) SellOutRanking(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be 1..100"})
		}
		limit = n
	}
	entries, err := h.Ranking.TopN(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ranking failed"})
	}
	if entries == nil {
		entries = []ranking.Entry{}
	}
	return c.JSON(http.StatusOK, echo.Map{"ranking": entries})
}
