package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clinicbook/internal/domain"
	"clinicbook/internal/logging"
)

const keyPrefix = "availability:"

// versionTTL outlives any entry so an expired counter only ever causes a
// skipped write.
const versionTTL = 24 * time.Hour

var errStaleVersion = errors.New("cache: availability version changed")

// Availability caches resolved slot lists per calendar date in redis.
type Availability struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewAvailability(client *redis.Client, ttl time.Duration) *Availability {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &Availability{redis: client, ttl: ttl}
}

// Get returns the cached slots for date. A miss reports ok=false without error.
func (a *Availability) Get(ctx context.Context, date string) ([]domain.TimeSlot, bool, error) {
	data, err := a.redis.Get(ctx, availabilityKey(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: failed to load availability: %w", err)
	}
	var slots []domain.TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, fmt.Errorf("cache: failed to decode availability: %w", err)
	}
	return slots, true, nil
}

// Version returns the invalidation counter for date. A missing counter is 0.
func (a *Availability) Version(ctx context.Context, date string) (int64, error) {
	v, err := a.redis.Get(ctx, versionKey(date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: failed to load availability version: %w", err)
	}
	return v, nil
}

// Set stores slots for date only while its version still equals version.
// A lost race is not an error; the entry is simply not written.
func (a *Availability) Set(ctx context.Context, date string, version int64, slots []domain.TimeSlot) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("cache: failed to encode availability: %w", err)
	}

	vkey := versionKey(date)
	err = a.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, availabilityKey(date), data, a.ttl)
			return nil
		})
		return err
	}, vkey)
	switch {
	case err == nil, errors.Is(err, errStaleVersion), errors.Is(err, redis.TxFailedErr):
		return nil
	}
	return fmt.Errorf("cache: failed to store availability: %w", err)
}

// Invalidate drops the entry for date and bumps its version so lookups
// already in flight cannot write it back.
func (a *Availability) Invalidate(ctx context.Context, date string) error {
	vkey := versionKey(date)
	_, err := a.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, vkey)
		p.Expire(ctx, vkey, versionTTL)
		p.Del(ctx, availabilityKey(date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: failed to invalidate availability: %w", err)
	}
	return nil
}

func availabilityKey(date string) string {
	return keyPrefix + date
}

func versionKey(date string) string {
	return keyPrefix + "v:" + date
}

// Noop satisfies the availability cache contract without storing anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]domain.TimeSlot, bool, error) { return nil, false, nil }
func (Noop) Version(context.Context, string) (int64, error)               { return 0, nil }
func (Noop) Set(context.Context, string, int64, []domain.TimeSlot) error  { return nil }
func (Noop) Invalidate(context.Context, string) error                     { return nil }

// Connect returns a redis client for url, or nil when url is empty or the
// server does not answer a ping.
func Connect(ctx context.Context, url string, log *zap.Logger) *redis.Client {
	log = logging.OrNop(log)
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("invalid REDIS_URL, availability cache disabled", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis not available, availability cache disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
