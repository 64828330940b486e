package admission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-reservation/internal/clock"
)

func newRedisFixture(t *testing.T, limit int) (*Service, *miniredis.Miniredis, *clock.Fake) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewRedisStore(rdb, limit, clk)
	return NewService(store, clk, 10*time.Minute), mr, clk
}

func TestRedisStoreImmediateAdmission(t *testing.T) {
	svc, _, _ := newRedisFixture(t, 2)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, tok.Status)
	assert.Equal(t, 0, tok.Position)
}

func TestRedisStoreWaitingPositionsFollowArrival(t *testing.T) {
	svc, _, _ := newRedisFixture(t, 1)
	ctx := context.Background()

	first, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, first.Status)

	second, err := svc.Issue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, second.Status)
	assert.Equal(t, 1, second.Position)

	third, err := svc.Issue(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, third.Status)
	assert.Equal(t, 2, third.Position)
}

func TestRedisStoreCompletePromotesOldestWaiter(t *testing.T) {
	svc, _, _ := newRedisFixture(t, 1)
	ctx := context.Background()

	first, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Complete(ctx, first.Value))

	promoted, err := svc.Status(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, promoted.Status)
}

func TestRedisStoreReclaimsAbandonedActiveSlot(t *testing.T) {
	svc, mr, clk := newRedisFixture(t, 1)
	ctx := context.Background()

	first, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, StatusActive, first.Status)

	// User 1 walks away: the token TTL lapses, the metadata keys vanish,
	// and nobody ever calls Complete or ValidateActive on the token.
	clk.Advance(11 * time.Minute)
	mr.FastForward(11 * time.Minute)

	// The next issuer must get the slot back, not park behind a ghost.
	second, err := svc.Issue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, second.Status)
	assert.Equal(t, 0, second.Position)
}

func TestRedisStoreExpiredWaiterIsSkippedOnPromotion(t *testing.T) {
	svc, mr, clk := newRedisFixture(t, 1)
	ctx := context.Background()

	active, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, 2)
	require.NoError(t, err)

	// Waiter 2's token lapses while user 1 is still busy; re-arm user 1's
	// expiry so only the waiter is stale.
	clk.Advance(9 * time.Minute)
	mr.FastForward(9 * time.Minute)
	_, err = svc.Issue(ctx, 3)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	mr.FastForward(2 * time.Minute)
	require.True(t, active.IsExpired(clk.Now()))

	// User 1's grant and waiter 2's metadata are both gone; the next
	// promotion must skip the dead waiter and admit user 3.
	fourth, err := svc.Issue(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, fourth.Status)
	assert.Equal(t, 1, fourth.Position)

	promoted, err := svc.Status(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, promoted.Status)

	_, err = svc.Status(ctx, 2)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
