package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-reservation/internal/clock"
)

// Redis layout (shared by all replicas):
//
//	queue:waiting            ZSET  member=userID, score=arrival unix ms
//	queue:active             ZSET  member=userID, score=token expiry unix ms
//	queue:token:<userID>     STRING JSON token metadata, TTL = token TTL
//	queue:value:<value>      STRING userID, TTL = token TTL
//
// A token's status is derived from which structure currently references it:
// present in the active zset -> ACTIVE, ranked in the waiting zset ->
// WAITING, metadata gone or unreferenced -> not found.  Scoring the active
// zset by expiry lets the promotion script drop lapsed grants that nobody
// came back to expire explicitly; without that, an abandoned ACTIVE token
// would hold its slot forever once its metadata TTL erased every other
// trace of it.  Promotion pops the lowest-score waiter into the active zset
// inside a Lua script so the active count can never exceed the limit even
// with concurrent issuers on different replicas.
const (
	waitingKey  = "queue:waiting"
	activeKey   = "queue:active"
	metaPrefix  = "queue:token:"
	valuePrefix = "queue:value:"
)

// KEYS[1] waiting zset, KEYS[2] active zset.
// ARGV[1] limit, ARGV[2] metadata key prefix, ARGV[3] now unix ms.
// Lapsed actives are evicted first; waiters whose metadata already expired
// are popped and skipped.
var promoteScript = redis.NewScript(`
	redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[3])
	local count = redis.call('ZCARD', KEYS[2])
	local limit = tonumber(ARGV[1])
	while count < limit do
		local popped = redis.call('ZPOPMIN', KEYS[1], 1)
		if #popped == 0 then
			return count
		end
		local uid = popped[1]
		local raw = redis.call('GET', ARGV[2] .. uid)
		if raw then
			local meta = cjson.decode(raw)
			redis.call('ZADD', KEYS[2], meta['expires_at_ms'], uid)
			count = count + 1
		end
	end
	return count
`)

// storeMeta is the persisted token plus a numeric expiry the promotion
// script can use as a zset score (the RFC 3339 expires_at is opaque to Lua).
type storeMeta struct {
	Token
	ExpiresAtMS int64 `json:"expires_at_ms"`
}

// RedisStore is the production TokenStore.  It lives entirely in Redis so
// every replica observes the same waiting line and active set.
type RedisStore struct {
	rdb   *redis.Client
	limit int
	clk   clock.Clock
}

// NewRedisStore returns a TokenStore admitting at most limit callers.
func NewRedisStore(rdb *redis.Client, limit int, clk clock.Clock) *RedisStore {
	return &RedisStore{rdb: rdb, limit: limit, clk: clk}
}

func (s *RedisStore) FindLatestByUser(ctx context.Context, userID uint64) (*Token, error) {
	raw, err := s.rdb.Get(ctx, metaKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token metadata: %w", err)
	}
	var t Token
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	return s.resolveStatus(ctx, &t)
}

func (s *RedisStore) FindByValue(ctx context.Context, value string) (*Token, error) {
	uid, err := s.rdb.Get(ctx, valuePrefix+value).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token value: %w", err)
	}
	raw, err := s.rdb.Get(ctx, metaPrefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token metadata: %w", err)
	}
	var t Token
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	if t.Value != value {
		// A newer token superseded this one for the same user.
		return nil, ErrTokenNotFound
	}
	return s.resolveStatus(ctx, &t)
}

func (s *RedisStore) Save(ctx context.Context, t *Token) (*Token, error) {
	switch t.Status {
	case StatusWaiting:
		ttl := t.ExpiresAt.Sub(s.clk.Now())
		if ttl <= 0 {
			return nil, ErrTokenExpired
		}
		if err := s.writeMeta(ctx, t, ttl); err != nil {
			return nil, err
		}
		// NX keeps the original arrival timestamp on idempotent re-saves.
		if err := s.rdb.ZAddNX(ctx, waitingKey, redis.Z{
			Score:  float64(t.CreatedAt.UnixMilli()),
			Member: userField(t.UserID),
		}).Err(); err != nil {
			return nil, fmt.Errorf("enqueue waiter: %w", err)
		}
		if err := s.promote(ctx); err != nil {
			return nil, err
		}
		return s.resolveStatus(ctx, t)

	case StatusActive:
		ttl := t.ExpiresAt.Sub(s.clk.Now())
		if ttl <= 0 {
			return nil, ErrTokenExpired
		}
		if err := s.writeMeta(ctx, t, ttl); err != nil {
			return nil, err
		}
		pipe := s.rdb.TxPipeline()
		pipe.ZAdd(ctx, activeKey, redis.Z{
			Score:  float64(t.ExpiresAt.UnixMilli()),
			Member: userField(t.UserID),
		})
		pipe.ZRem(ctx, waitingKey, userField(t.UserID))
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("activate token: %w", err)
		}
		if err := s.promote(ctx); err != nil {
			return nil, err
		}
		return s.resolveStatus(ctx, t)

	case StatusExpired, StatusDone:
		pipe := s.rdb.TxPipeline()
		pipe.ZRem(ctx, activeKey, userField(t.UserID))
		pipe.ZRem(ctx, waitingKey, userField(t.UserID))
		pipe.Del(ctx, metaKey(t.UserID), valuePrefix+t.Value)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("remove token: %w", err)
		}
		if err := s.promote(ctx); err != nil {
			return nil, err
		}
		cp := *t
		cp.Position = 0
		return &cp, nil
	}
	return nil, fmt.Errorf("save token: unknown status %q", t.Status)
}

func (s *RedisStore) writeMeta(ctx context.Context, t *Token, ttl time.Duration) error {
	raw, err := json.Marshal(storeMeta{Token: *t, ExpiresAtMS: t.ExpiresAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode token metadata: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, metaKey(t.UserID), raw, ttl)
	pipe.Set(ctx, valuePrefix+t.Value, userField(t.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write token metadata: %w", err)
	}
	return nil
}

func (s *RedisStore) promote(ctx context.Context) error {
	err := promoteScript.Run(ctx, s.rdb,
		[]string{waitingKey, activeKey},
		s.limit, metaPrefix, s.clk.Now().UnixMilli(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("promote waiters: %w", err)
	}
	return nil
}

// resolveStatus derives the token's current status and position from the
// active and waiting zsets.
func (s *RedisStore) resolveStatus(ctx context.Context, t *Token) (*Token, error) {
	cp := *t

	_, err := s.rdb.ZScore(ctx, activeKey, userField(t.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("check active set: %w", err)
	}
	if err == nil {
		cp.Status = StatusActive
		cp.Position = 0
		return &cp, nil
	}

	rank, err := s.rdb.ZRank(ctx, waitingKey, userField(t.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("check waiting queue: %w", err)
	}
	if err == nil {
		cp.Status = StatusWaiting
		cp.Position = int(rank) + 1
		return &cp, nil
	}

	return nil, ErrTokenNotFound
}

func metaKey(userID uint64) string   { return fmt.Sprintf("%s%d", metaPrefix, userID) }
func userField(userID uint64) string { return fmt.Sprintf("%d", userID) }
