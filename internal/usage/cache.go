package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache keeps computed stats in redis per user until the user records
// a new event.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatsCache(rdb *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{rdb: rdb, ttl: ttl}
}

var errStaleGeneration = errors.New("stats cache generation changed")

// generationKey lives outside statsPrefix so Invalidate's SCAN skips it.
func generationKey(userID int) string {
	return fmt.Sprintf("lifelock:usage:gen:u%d", userID)
}

func statsPrefix(userID int) string {
	return fmt.Sprintf("lifelock:usage:u%d:", userID)
}

// Get returns the cached stats for name, or nil on a miss.
func (c *StatsCache) Get(ctx context.Context, userID int, name string) (*UsageStats, error) {
	b, err := c.rdb.Get(ctx, statsPrefix(userID)+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stats UsageStats
	if err := json.Unmarshal(b, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Generation is the user's cache generation; Invalidate bumps it.
func (c *StatsCache) Generation(ctx context.Context, userID int) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores stats computed under generation gen. It writes nothing when the
// user was invalidated in the meantime, so a slow query cannot put stale
// stats back after a new event.
func (c *StatsCache) Set(ctx context.Context, userID int, gen int64, name string, stats UsageStats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	genKey := generationKey(userID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsPrefix(userID)+name, b, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate bumps the user's generation and drops every cached entry.
func (c *StatsCache) Invalidate(ctx context.Context, userID int) error {
	if err := c.rdb.Incr(ctx, generationKey(userID)).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, statsPrefix(userID)+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
