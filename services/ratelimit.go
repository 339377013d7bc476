package services

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig defines configuration for the per-IP rate limiter
type RateLimitConfig struct {
	MaxEntries      int           `yaml:"max_entries" env:"RATE_LIMIT_MAX_ENTRIES"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"RATE_LIMIT_CLEANUP_INTERVAL"`
	EntryTTL        time.Duration `yaml:"entry_ttl" env:"RATE_LIMIT_ENTRY_TTL"`
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"RATE_LIMIT_TRUSTED_PROXIES" envSeparator:","`
	AuthCapacity    int           `yaml:"auth_capacity" env:"RATE_LIMIT_AUTH_CAPACITY"`
	AuthRefill      time.Duration `yaml:"auth_refill" env:"RATE_LIMIT_AUTH_REFILL"`
}

// RateLimitStats provides statistics about rate limiter usage
type RateLimitStats struct {
	ActiveEntries int   `json:"active_entries"`
	TotalEntries  int64 `json:"total_entries"`
	EvictedCount  int64 `json:"evicted_count"`
	DeniedCount   int64 `json:"denied_count"`
}

type rlEntry struct {
	tokens   int
	refillAt time.Time
	lastUsed time.Time
}

// RateLimiter is a fixed-window token bucket keyed by client IP, with LRU eviction
// once MaxEntries is exceeded and periodic removal of idle entries.
type RateLimiter struct {
	mu             sync.Mutex
	entries        map[string]*rlEntry
	config         RateLimitConfig
	stats          RateLimitStats
	trustedProxies map[string]bool
	log            *logrus.Logger
	stop           chan struct{}
	stopOnce       sync.Once
	now            func() time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Stop to end it.
func NewRateLimiter(config RateLimitConfig, log *logrus.Logger) *RateLimiter {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = 30 * time.Minute
	}
	trusted := make(map[string]bool, len(config.TrustedProxies))
	for _, p := range config.TrustedProxies {
		trusted[strings.TrimSpace(p)] = true
	}
	rl := &RateLimiter{
		entries:        make(map[string]*rlEntry),
		config:         config,
		trustedProxies: trusted,
		log:            log,
		stop:           make(chan struct{}),
		now:            time.Now,
	}
	go rl.cleanupLoop()
	return rl
}

// Middleware returns a Fiber handler allowing capacity requests per refill window.
func (rl *RateLimiter) Middleware(capacity int, refill time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := rl.clientIP(c)
		if ip == "" {
			return c.Next()
		}
		if !rl.Allow(ip, capacity, refill) {
			if rl.log != nil {
				rl.log.WithFields(logrus.Fields{"ip": ip, "path": c.Path()}).Warn("rate limit exceeded")
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}
		return c.Next()
	}
}

// Allow consumes one token for key, refilling the bucket when its window has passed.
func (rl *RateLimiter) Allow(key string, capacity int, refill time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries[key]
	if !ok || now.After(entry.refillAt) {
		entry = &rlEntry{tokens: capacity, refillAt: now.Add(refill)}
		rl.entries[key] = entry
		rl.stats.TotalEntries++
	}
	entry.lastUsed = now

	if len(rl.entries) > rl.config.MaxEntries {
		rl.evictOldest()
	}

	if entry.tokens <= 0 {
		rl.stats.DeniedCount++
		return false
	}
	entry.tokens--
	return true
}

func (rl *RateLimiter) Stats() RateLimitStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	s := rl.stats
	s.ActiveEntries = len(rl.entries)
	return s
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// clientIP trusts forwarding headers only when the peer is a configured proxy.
func (rl *RateLimiter) clientIP(c *fiber.Ctx) string {
	remote := c.IP()
	if rl.trustedProxies[remote] {
		if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
			first := strings.TrimSpace(strings.Split(fwd, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
		if realIP := c.Get("X-Real-IP"); realIP != "" {
			if ip := net.ParseIP(strings.TrimSpace(realIP)); ip != nil {
				return ip.String()
			}
		}
	}
	if ip := net.ParseIP(remote); ip != nil {
		return ip.String()
	}
	return ""
}

// evictOldest must be called with mu held.
func (rl *RateLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range rl.entries {
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = k, e.lastUsed
		}
	}
	if oldestKey != "" {
		delete(rl.entries, oldestKey)
		rl.stats.EvictedCount++
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.config.EntryTTL)
	for k, e := range rl.entries {
		if e.lastUsed.Before(cutoff) {
			delete(rl.entries, k)
		}
	}
}
