package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oikotie-tools/apartment-radar/internal/cache"
)

func newTestCache(t *testing.T, ttl time.Duration) (*cache.Counts, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	counts := cache.New(mr.Addr(), ttl, nil)
	t.Cleanup(func() { counts.Close() })
	return counts, mr
}

func TestCountsRoundtrip(t *testing.T) {
	counts, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok := counts.Get(ctx, "cardType=100&price%5Bmin%5D=100000")
	require.False(t, ok)

	counts.Set(ctx, "cardType=100&price%5Bmin%5D=100000", 321)

	got, ok := counts.Get(ctx, "cardType=100&price%5Bmin%5D=100000")
	require.True(t, ok)
	require.Equal(t, 321, got)

	// A different parameter set is a different entry.
	_, ok = counts.Get(ctx, "cardType=100")
	require.False(t, ok)
}

func TestInvalidateOrphansEntries(t *testing.T) {
	counts, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	counts.Set(ctx, "cardType=100", 10)
	require.NoError(t, counts.Invalidate(ctx))

	_, ok := counts.Get(ctx, "cardType=100")
	require.False(t, ok)

	// Writes after the bump land in the new generation.
	counts.Set(ctx, "cardType=100", 20)
	got, ok := counts.Get(ctx, "cardType=100")
	require.True(t, ok)
	require.Equal(t, 20, got)
}

func TestEntriesExpire(t *testing.T) {
	counts, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	counts.Set(ctx, "cardType=100", 5)
	mr.FastForward(2 * time.Second)

	_, ok := counts.Get(ctx, "cardType=100")
	require.False(t, ok)
}

func TestPing(t *testing.T) {
	counts, mr := newTestCache(t, time.Minute)
	require.NoError(t, counts.Ping(context.Background()))

	mr.Close()
	require.Error(t, counts.Ping(context.Background()))
}
