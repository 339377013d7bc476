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

type UserHandler struct {
	accounts  *services.AccountService
	userRepo  models.UserRepositoryInterface
	media     *MediaUploader
	analytics *services.Analytics
	validator *validator.Validate
	log       *logrus.Logger
}

func NewUserHandler(accounts *services.AccountService, userRepo models.UserRepositoryInterface, media *MediaUploader, analytics *services.Analytics, log *logrus.Logger) *UserHandler {
	return &UserHandler{
		accounts:  accounts,
		userRepo:  userRepo,
		media:     media,
		analytics: analytics,
		validator: NewValidator(accounts.Policy()),
		log:       log,
	}
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return jsonError(c, fiber.StatusBadRequest, "Username required")
	}

	user, err := h.userRepo.GetByUsername(c.UserContext(), services.NormalizeUsername(username))
	if err != nil || user.IsDisabled {
		return jsonError(c, fiber.StatusNotFound, "User not found")
	}
	h.analytics.RecordView(c.UserContext(), services.ViewProfile, user.ID.String())

	return c.JSON(user.ToPublic())
}

func (h *UserHandler) GetMyProfile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	user, err := h.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	return c.JSON(user.ToResponse())
}

func (h *UserHandler) UpdateMyProfile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req models.UpdateProfileRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	updated, err := h.accounts.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	return c.JSON(updated.ToResponse())
}

// Change email
func (h *UserHandler) UpdateEmail(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req models.UpdateEmailRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	if err := h.accounts.ChangeEmail(c.UserContext(), userID, req.Email, req.CurrentPassword); err != nil {
		return storeError(c, h.log, err, "User")
	}
	return c.JSON(fiber.Map{"email": strings.ToLower(strings.TrimSpace(req.Email))})
}

// Change password (requires current password)
func (h *UserHandler) UpdatePassword(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req models.UpdatePasswordRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	if err := h.accounts.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return storeError(c, h.log, err, "User")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) DeleteMyAccount(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req models.DeleteAccountRequest
	_ = c.BodyParser(&req)
	if req.Confirm != "DELETE" {
		return jsonError(c, fiber.StatusBadRequest, "Confirmation required")
	}
	user, err := h.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	if err := h.accounts.DeleteAccount(c.UserContext(), userID); err != nil {
		return storeError(c, h.log, err, "User")
	}
	h.media.Discard(c.UserContext(), user.AvatarURL)
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadAvatar stores a square-cropped avatar and points the profile at it.
func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	user, err := h.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}

	res, ok, err := h.media.Upload(c, "avatar", services.MediaAvatar)
	if !ok {
		return err
	}
	previous := user.AvatarURL
	user.AvatarURL = &res.URL
	if err := h.userRepo.UpdateProfile(c.UserContext(), user); err != nil {
		return storeError(c, h.log, err, "User")
	}
	h.media.Discard(c.UserContext(), previous)
	return c.JSON(fiber.Map{"avatar_url": res.URL, "meta": res.Meta})
}
