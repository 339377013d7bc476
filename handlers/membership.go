package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/middleware"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type MembershipHandler struct {
	membershipRepo models.MembershipRepositoryInterface
	userRepo       models.UserRepositoryInterface
	validator      *validator.Validate
	log            *logrus.Logger
}

func NewMembershipHandler(membershipRepo models.MembershipRepositoryInterface, userRepo models.UserRepositoryInterface, v *validator.Validate, log *logrus.Logger) *MembershipHandler {
	return &MembershipHandler{membershipRepo: membershipRepo, userRepo: userRepo, validator: v, log: log}
}

func (h *MembershipHandler) CreateTier(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req models.CreateTierRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	benefits := make([]string, 0, len(req.Benefits))
	for _, b := range req.Benefits {
		if b = strings.TrimSpace(b); b != "" {
			benefits = append(benefits, b)
		}
	}
	tier := &models.Tier{
		CreatorID:   userID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Currency:    strings.ToUpper(req.Currency),
		Benefits:    benefits,
	}
	if err := h.membershipRepo.CreateTier(c.UserContext(), tier); err != nil {
		return storeError(c, h.log, err, "Tier")
	}
	return c.Status(fiber.StatusCreated).JSON(tier)
}

func (h *MembershipHandler) ListTiersByUser(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByUsername(c.UserContext(), services.NormalizeUsername(c.Params("username")))
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	tiers, err := h.membershipRepo.ListTiersByCreator(c.UserContext(), user.ID)
	if err != nil {
		return storeError(c, h.log, err, "Tier")
	}
	return c.JSON(fiber.Map{"tiers": tiers})
}

func (h *MembershipHandler) DeleteTier(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid tier id")
	}
	tier, err := h.membershipRepo.GetTier(c.UserContext(), id)
	if err != nil {
		return storeError(c, h.log, err, "Tier")
	}
	if tier.CreatorID != userID {
		return jsonError(c, fiber.StatusForbidden, "Forbidden")
	}
	if err := h.membershipRepo.DeleteTier(c.UserContext(), id); err != nil {
		return storeError(c, h.log, err, "Tier")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Join makes the caller a member of tier :id, replacing any other tier they hold
// with the same creator.
func (h *MembershipHandler) Join(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid tier id")
	}
	tier, err := h.membershipRepo.GetTier(c.UserContext(), id)
	if err != nil {
		return storeError(c, h.log, err, "Tier")
	}
	if tier.CreatorID == userID {
		return jsonError(c, fiber.StatusBadRequest, "Cannot join your own tier")
	}
	m := &models.Membership{
		TierID:      tier.ID,
		CreatorID:   tier.CreatorID,
		SupporterID: userID,
		TierName:    tier.Name,
		PriceCents:  tier.PriceCents,
		Currency:    tier.Currency,
	}
	if err := h.membershipRepo.Join(c.UserContext(), m); err != nil {
		return storeError(c, h.log, err, "Tier")
	}
	h.log.WithFields(logrus.Fields{"user_id": userID, "tier_id": tier.ID}).Info("membership started")
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *MembershipHandler) Leave(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid tier id")
	}
	if err := h.membershipRepo.Cancel(c.UserContext(), userID, id); err != nil {
		return storeError(c, h.log, err, "Membership")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MembershipHandler) MyMemberships(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	memberships, err := h.membershipRepo.ListBySupporter(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "Membership")
	}
	return c.JSON(fiber.Map{"memberships": memberships})
}

func (h *MembershipHandler) MyMembers(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	members, err := h.membershipRepo.ListByCreator(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "Membership")
	}
	monthly := centsByCurrency(members, func(m models.Membership) (string, int64) { return m.Currency, m.PriceCents })
	return c.JSON(fiber.Map{"members": members, "count": len(members), "monthly_cents": monthly})
}
