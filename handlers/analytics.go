package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/middleware"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type AnalyticsHandler struct {
	analytics   *services.Analytics
	projectRepo models.ProjectRepositoryInterface
	shopRepo    models.ShopRepositoryInterface
	log         *logrus.Logger
}

func NewAnalyticsHandler(analytics *services.Analytics, projectRepo models.ProjectRepositoryInterface, shopRepo models.ShopRepositoryInterface, log *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, projectRepo: projectRepo, shopRepo: shopRepo, log: log}
}

type itemViews struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Total int64     `json:"total"`
}

// Mine reports the caller's profile views over the last ?days (default 7) plus
// totals for each of their projects and products.
func (h *AnalyticsHandler) Mine(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days < 1 || days > services.MaxAnalyticsDays {
		return jsonError(c, fiber.StatusBadRequest, "days must be between 1 and 90")
	}

	ctx := c.UserContext()
	profile, err := h.analytics.Stats(ctx, services.ViewProfile, userID.String(), days)
	if err != nil {
		return h.unavailable(c, err)
	}

	projects, err := h.projectRepo.ListByCreator(ctx, userID)
	if err != nil {
		return storeError(c, h.log, err, "Project")
	}
	projectViews := make([]itemViews, 0, len(projects))
	for _, p := range projects {
		total, err := h.total(ctx, services.ViewProject, p.ID)
		if err != nil {
			return h.unavailable(c, err)
		}
		projectViews = append(projectViews, itemViews{ID: p.ID, Title: p.Title, Total: total})
	}

	products, err := h.shopRepo.ListProductsByCreator(ctx, userID, false)
	if err != nil {
		return storeError(c, h.log, err, "Product")
	}
	productViews := make([]itemViews, 0, len(products))
	for _, p := range products {
		total, err := h.total(ctx, services.ViewProduct, p.ID)
		if err != nil {
			return h.unavailable(c, err)
		}
		productViews = append(productViews, itemViews{ID: p.ID, Title: p.Name, Total: total})
	}

	return c.JSON(fiber.Map{
		"days":     days,
		"profile":  profile,
		"projects": projectViews,
		"products": productViews,
	})
}

func (h *AnalyticsHandler) total(ctx context.Context, kind services.ViewKind, id uuid.UUID) (int64, error) {
	stats, err := h.analytics.Stats(ctx, kind, id.String(), 1)
	if err != nil {
		return 0, err
	}
	return stats.Total, nil
}

func (h *AnalyticsHandler) unavailable(c *fiber.Ctx, err error) error {
	h.log.WithError(err).Warn("analytics unavailable")
	return jsonError(c, fiber.StatusServiceUnavailable, "Analytics temporarily unavailable")
}

// Health reports whether the store and, when configured, the counter backend answer.
func Health(checks map[string]func(context.Context) error, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		result := fiber.Map{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WithError(err).WithField("check", name).Warn("health check failed")
				result[name] = "down"
				status = fiber.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		return c.Status(status).JSON(fiber.Map{"status": result})
	}
}
