package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/domain/market"
	"vega/pkg/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*Store, *MemoryBackend, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)}
	backend := NewMemoryBackend()
	backend.now = clock.Now
	store := NewStore(backend, 24*time.Hour, clock.Now, logger.Get())
	return store, backend, clock
}

func TestRecordAggregate_SameMinuteOverwrites(t *testing.T) {
	store, backend, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAggregate(ctx, 100000, 100000))
	require.NoError(t, store.RecordAggregate(ctx, 120000, 110000))

	assert.Equal(t, 1, backend.Len(), "same-minute snapshots must collapse to one bucket")

	// The later write wins
	ce, pe, found := store.AggregateChange(ctx, 120000, 110000, 0)
	require.True(t, found)
	assert.Equal(t, 0.0, ce)
	assert.Equal(t, 0.0, pe)
}

func TestStrikeChange_RoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	data := market.StrikeData{
		Strike:         24150,
		CEOpenInterest: 50000,
		PEOpenInterest: 60000,
		CEVolume:       1200,
		PEVolume:       1500,
		CELastPrice:    142.5,
		PELastPrice:    138.0,
	}
	require.NoError(t, store.RecordStrike(ctx, data))

	ce, pe, found := store.StrikeChange(ctx, 24150, data, 0)
	require.True(t, found)
	assert.Equal(t, 0.0, ce)
	assert.Equal(t, 0.0, pe)
}

func TestAggregateChange_NoHistory(t *testing.T) {
	store, _, _ := newTestStore(t)

	ce, pe, found := store.AggregateChange(context.Background(), 100000, 100000, 15)
	assert.False(t, found, "a miss must report found=false, not zero change")
	assert.Equal(t, 0.0, ce)
	assert.Equal(t, 0.0, pe)
}

func TestAggregateChange_Percentages(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAggregate(ctx, 100000, 100000))
	clock.Advance(15 * time.Minute)

	ce, pe, found := store.AggregateChange(ctx, 95000, 100000, 15)
	require.True(t, found)
	assert.InDelta(t, -5.0, ce, 0.001)
	assert.InDelta(t, 0.0, pe, 0.001)
}

func TestAggregateChange_ZeroBaselineSentinel(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAggregate(ctx, 0, 0))
	clock.Advance(5 * time.Minute)

	ce, pe, found := store.AggregateChange(ctx, 40000, 0, 5)
	require.True(t, found)
	assert.Equal(t, 100.0, ce, "new OI on a zero baseline reports the capped sentinel")
	assert.Equal(t, 0.0, pe, "zero on zero stays flat")
}

func TestAggregateChange_ToleranceSearch(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAggregate(ctx, 100000, 100000))

	// 16 minutes later the exact 15-minute bucket is empty; the snapshot
	// sits one minute earlier and must still be found.
	clock.Advance(16 * time.Minute)

	ce, _, found := store.AggregateChange(ctx, 90000, 100000, 15)
	require.True(t, found)
	assert.InDelta(t, -10.0, ce, 0.001)
}

func TestAggregateChange_BeyondTolerance(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAggregate(ctx, 100000, 100000))
	clock.Advance(25 * time.Minute)

	_, _, found := store.AggregateChange(ctx, 90000, 100000, 15)
	assert.False(t, found, "snapshots more than 3 minutes off the target bucket must not match")
}

func TestMemoryBackend_PurgesExpiredOnWrite(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)}
	backend := NewMemoryBackend()
	backend.now = clock.Now
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "a", "1", time.Hour))
	clock.Advance(2 * time.Hour)
	require.NoError(t, backend.Put(ctx, "b", "2", time.Hour))

	_, ok := backend.Get(ctx, "a")
	assert.False(t, ok, "expired entry should be purged by the next write")
	_, ok = backend.Get(ctx, "b")
	assert.True(t, ok)
}

func TestIsWarmedUp(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	assert.False(t, store.IsWarmedUp(ctx, 15), "no snapshots yet")

	require.NoError(t, store.RecordAggregate(ctx, 100000, 100000))
	assert.False(t, store.IsWarmedUp(ctx, 15), "not enough elapsed time")

	clock.Advance(15 * time.Minute)
	assert.True(t, store.IsWarmedUp(ctx, 15))

	// A restart-sized gap: time has passed but no snapshot exists at the
	// 15-minute offset anymore.
	clock.Advance(30 * time.Minute)
	assert.False(t, store.IsWarmedUp(ctx, 15))
}

func TestStats(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAggregate(ctx, 100000, 100000))
	clock.Advance(6 * time.Minute)
	require.NoError(t, store.RecordAggregate(ctx, 101000, 99000))

	stats := store.Stats(ctx)
	assert.Equal(t, 2, stats.SnapshotCount)
	assert.InDelta(t, 6.0, stats.ElapsedMinutes, 0.001)
	assert.True(t, stats.WarmedUp5m)
	assert.False(t, stats.WarmedUp15m)
}
