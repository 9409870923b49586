package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestAvailability_SetGetInvalidate(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewAvailability(client, 30*time.Second)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, ok)

	slots := []domain.TimeSlot{{Time: "09:00", Available: false}, {Time: "09:30", Available: true}}
	require.NoError(t, c.Set(ctx, "2025-06-10", 0, slots))
	assert.True(t, mr.Exists("availability:2025-06-10"))
	assert.Equal(t, 30*time.Second, mr.TTL("availability:2025-06-10"))

	got, ok, err := c.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, slots, got)

	require.NoError(t, c.Invalidate(ctx, "2025-06-10"))
	_, ok, err = c.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Version(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, versionTTL, mr.TTL("availability:v:2025-06-10"))
}

func TestAvailability_SetAfterInvalidateIsDropped(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewAvailability(client, time.Minute)
	ctx := context.Background()

	// A lookup reads the version, then a booking commits and invalidates
	// before the lookup writes what it read from the store.
	v, err := c.Version(ctx, "2025-06-10")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "2025-06-10"))

	stale := []domain.TimeSlot{{Time: "09:00", Available: true}}
	require.NoError(t, c.Set(ctx, "2025-06-10", v, stale))
	assert.False(t, mr.Exists("availability:2025-06-10"))

	fresh := []domain.TimeSlot{{Time: "09:00", Available: false}}
	v, err = c.Version(ctx, "2025-06-10")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "2025-06-10", v, fresh))
	got, ok, err := c.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh, got)
}

func TestAvailability_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewAvailability(client, time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "2025-06-10", 0, []domain.TimeSlot{{Time: "09:00", Available: true}}))
	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAvailability_CorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewAvailability(client, time.Minute)
	require.NoError(t, mr.Set("availability:2025-06-10", "not-json"))

	_, ok, err := c.Get(context.Background(), "2025-06-10")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAvailability_ServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewAvailability(client, time.Minute)
	mr.Close()

	_, _, err := c.Get(context.Background(), "2025-06-10")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), "", nil))
	assert.Nil(t, Connect(context.Background(), "::not a url::", nil))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := Connect(context.Background(), "redis://"+mr.Addr()+"/0", nil)
	require.NotNil(t, client)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNoop(t *testing.T) {
	var c Noop
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "2025-06-10", 0, []domain.TimeSlot{{Time: "09:00"}}))
	v, err := c.Version(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.Zero(t, v)
	_, ok, err := c.Get(ctx, "2025-06-10")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "2025-06-10"))
}
