// Package cache holds the Redis-backed read-side cache of seat availability.
// The seats table stays authoritative; the cache only absorbs the hot
// "which seats are free" reads during an on-sale and is invalidated whenever
// a payment takes a seat off the market.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-reservation/internal/events"
)

const availabilityPrefix = "availability:"

// Availability caches the free seat numbers per concert date as a JSON
// array.  A nil Redis client turns every call into a miss, so the service
// degrades to reading the database directly.
type Availability struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAvailability returns an Availability cache over rdb with the given TTL.
func NewAvailability(rdb *redis.Client, ttl time.Duration) *Availability {
	return &Availability{rdb: rdb, ttl: ttl}
}

func key(date string) string { return availabilityPrefix + date }

// Get returns the cached seat numbers for date.  ok is false on a miss or
// any cache failure; cache failures are logged, never surfaced.
func (a *Availability) Get(ctx context.Context, date string) (seats []int, ok bool) {
	if a.rdb == nil {
		return nil, false
	}
	raw, err := a.rdb.Get(ctx, key(date)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[cache] get availability %s: %v", date, err)
		return nil, false
	}
	if err := json.Unmarshal(raw, &seats); err != nil {
		log.Printf("[cache] decode availability %s: %v", date, err)
		return nil, false
	}
	return seats, true
}

// Set stores the seat numbers for date.  An empty list is cached too --
// "sold out" is the answer the cache exists to serve fast.
func (a *Availability) Set(ctx context.Context, date string, seats []int) {
	if a.rdb == nil {
		return
	}
	if seats == nil {
		seats = []int{}
	}
	raw, err := json.Marshal(seats)
	if err != nil {
		log.Printf("[cache] encode availability %s: %v", date, err)
		return
	}
	if err := a.rdb.Set(ctx, key(date), raw, a.ttl).Err(); err != nil {
		log.Printf("[cache] set availability %s: %v", date, err)
	}
}

// Invalidate drops the cached view for date.
func (a *Availability) Invalidate(ctx context.Context, date string) {
	if a.rdb == nil {
		return
	}
	if err := a.rdb.Del(ctx, key(date)).Err(); err != nil {
		log.Printf("[cache] invalidate availability %s: %v", date, err)
	}
}

// ReservationCompleted evicts the date's cached view after a sale so the
// next read reflects the sold seat.  Satisfies the reservation service's
// listener contract.
func (a *Availability) ReservationCompleted(ctx context.Context, ev events.ReservationCompleted) {
	a.Invalidate(ctx, ev.ConcertDate)
}
