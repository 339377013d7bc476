package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// StoreGuard pings the store before letting a request through and answers 503 while
// it is unreachable. A successful ping is trusted for interval.
func StoreGuard(ping func(ctx context.Context) error, interval time.Duration, log *logrus.Logger) fiber.Handler {
	var (
		mu       sync.Mutex
		lastGood time.Time
	)
	return func(c *fiber.Ctx) error {
		mu.Lock()
		fresh := time.Since(lastGood) < interval
		mu.Unlock()
		if fresh {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			log.WithError(err).Error("store ping failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Database connection is down",
			})
		}

		mu.Lock()
		lastGood = time.Now()
		mu.Unlock()
		return c.Next()
	}
}
