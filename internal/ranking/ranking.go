// Package ranking keeps a popularity board of concert dates ordered by how
// often they sold out.  The board lives in a Redis sorted set so every
// replica increments and reads the same counters; without Redis the board is
// simply empty.
package ranking

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-reservation/internal/events"
)

const rankingKey = "concert:sold-out-ranking"

// Entry is one row of the board.
type Entry struct {
	Rank        int    `json:"rank"`
	ConcertDate string `json:"concert_date"`
	SellOuts    int64  `json:"sell_outs"`
}

// Board records sell-outs and serves the top dates.
type Board struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBoard returns a Board over rdb.  rdb may be nil, in which case records
// are dropped and reads return nothing.
func NewBoard(rdb *redis.Client, ttl time.Duration) *Board {
	return &Board{rdb: rdb, ttl: ttl}
}

// RecordSellOut bumps the date's sell-out counter and refreshes the board's
// TTL so an abandoned board eventually disappears.
func (b *Board) RecordSellOut(ctx context.Context, date string) error {
	if b.rdb == nil {
		return nil
	}
	if err := b.rdb.ZIncrBy(ctx, rankingKey, 1, date).Err(); err != nil {
		return err
	}
	return b.rdb.Expire(ctx, rankingKey, b.ttl).Err()
}

// TopN returns up to n dates ordered by sell-out count, best first.  Ranks
// are 1-based and follow Redis's ordering, so ties keep a stable order.
func (b *Board) TopN(ctx context.Context, n int) ([]Entry, error) {
	if b.rdb == nil || n <= 0 {
		return nil, nil
	}
	rows, err := b.rdb.ZRevRangeWithScores(ctx, rankingKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for i, row := range rows {
		date, _ := row.Member.(string)
		out = append(out, Entry{
			Rank:        i + 1,
			ConcertDate: date,
			SellOuts:    int64(row.Score),
		})
	}
	return out, nil
}

// ReservationCompleted bumps the board when a completed payment took the
// date's last seat.  Satisfies the reservation service's listener contract.
func (b *Board) ReservationCompleted(ctx context.Context, ev events.ReservationCompleted) {
	if !ev.SoldOut {
		return
	}
	if err := b.RecordSellOut(ctx, ev.ConcertDate); err != nil {
		log.Printf("[ranking] record sell-out for %s: %v", ev.ConcertDate, err)
	}
}
