package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ViewKind names the thing whose page views are counted.
type ViewKind string

const (
	ViewProfile ViewKind = "profile"
	ViewProject ViewKind = "project"
	ViewProduct ViewKind = "product"

	// dailyKeyTTL keeps per-day counters a little past the longest report window.
	dailyKeyTTL = 100 * 24 * time.Hour
	dayLayout   = "20060102"

	MaxAnalyticsDays = 90
)

// Counter stores integer counters by key.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) error
	// Get returns the value of each key; missing keys are reported as 0.
	Get(ctx context.Context, keys ...string) (map[string]int64, error)
}

// RedisCounter keeps counters in Redis behind a circuit breaker, so an unavailable
// Redis fails fast instead of adding latency to every page view.
type RedisCounter struct {
	rdb *redis.Client
	cb  *gobreaker.CircuitBreaker
}

func NewRedisCounter(rdb *redis.Client, log *logrus.Logger) *RedisCounter {
	st := gobreaker.Settings{
		Name:        "RedisCounter",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if log != nil {
				log.Warnf("circuit breaker %s changed from %s to %s", name, from, to)
			}
		},
	}
	return &RedisCounter{rdb: rdb, cb: gobreaker.NewCircuitBreaker(st)}
}

// NewRedisClient connects to Redis, retrying the initial ping with backoff.
func NewRedisClient(ctx context.Context, cfg RedisConfig, log *logrus.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return rdb, nil
		}
		backoff := time.Duration(1<<i) * time.Second
		log.WithError(err).Warnf("redis not ready, retry in %v (%d/%d)", backoff, i+1, maxRetries)
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d retries: %w", maxRetries, err)
}

func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		pipe := c.rdb.TxPipeline()
		pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return err
}

func (c *RedisCounter) Get(ctx context.Context, keys ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	_, err := c.cb.Execute(func() (interface{}, error) {
		vals, err := c.rdb.MGet(ctx, keys...).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		for i, v := range vals {
			out[keys[i]] = parseCounterValue(v)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseCounterValue(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// MemoryCounter is the in-process Counter used when Redis is not configured.
// Expiry is not enforced.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
	return nil
}

func (m *MemoryCounter) Get(_ context.Context, keys ...string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[k] = m.counts[k]
	}
	return out, nil
}

// DailyViews is one point of a view series.
type DailyViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

// ViewStats is the report for a single profile, project or product.
type ViewStats struct {
	Kind  ViewKind     `json:"kind"`
	ID    string       `json:"id"`
	Total int64        `json:"total"`
	Daily []DailyViews `json:"daily"`
}

// Analytics records page views. Recording is best effort and never surfaces errors
// to the caller.
type Analytics struct {
	counter Counter
	log     *logrus.Logger
	now     func() time.Time
}

func NewAnalytics(counter Counter, log *logrus.Logger) *Analytics {
	return &Analytics{counter: counter, log: log, now: time.Now}
}

func viewKey(kind ViewKind, id string) string {
	return fmt.Sprintf("views:%s:%s", kind, id)
}

func dailyViewKey(kind ViewKind, id string, day time.Time) string {
	return fmt.Sprintf("views:%s:%s:%s", kind, id, day.UTC().Format(dayLayout))
}

// RecordView increments the total and today's counter for the item.
func (a *Analytics) RecordView(ctx context.Context, kind ViewKind, id string) {
	if id == "" {
		return
	}
	day := a.now()
	for _, k := range []struct {
		key string
		ttl time.Duration
	}{
		{viewKey(kind, id), 0},
		{dailyViewKey(kind, id, day), dailyKeyTTL},
	} {
		if err := a.counter.Incr(ctx, k.key, k.ttl); err != nil {
			a.log.WithError(err).WithField("key", k.key).Warn("failed to record view")
			return
		}
	}
}

// Stats returns the total and the last days of daily counts, oldest first.
func (a *Analytics) Stats(ctx context.Context, kind ViewKind, id string, days int) (*ViewStats, error) {
	if days < 1 || days > MaxAnalyticsDays {
		return nil, fmt.Errorf("days must be between 1 and %d", MaxAnalyticsDays)
	}
	today := a.now().UTC()
	keys := make([]string, 0, days+1)
	keys = append(keys, viewKey(kind, id))
	dates := make([]time.Time, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, -(days - 1 - i))
		dates[i] = d
		keys = append(keys, dailyViewKey(kind, id, d))
	}
	counts, err := a.counter.Get(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read view counters: %w", err)
	}
	stats := &ViewStats{Kind: kind, ID: id, Total: counts[keys[0]], Daily: make([]DailyViews, days)}
	for i, d := range dates {
		stats.Daily[i] = DailyViews{Date: d.Format("2006-01-02"), Views: counts[keys[i+1]]}
	}
	return stats, nil
}
