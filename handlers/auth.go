package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/middleware"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type AuthHandler struct {
	accounts  *services.AccountService
	userRepo  models.UserRepositoryInterface
	jwt       *middleware.JWT
	validator *validator.Validate
	log       *logrus.Logger
}

func NewAuthHandler(accounts *services.AccountService, userRepo models.UserRepositoryInterface, jwt *middleware.JWT, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		userRepo:  userRepo,
		jwt:       jwt,
		validator: NewValidator(accounts.Policy()),
		log:       log,
	}
}

func (h *AuthHandler) issue(c *fiber.Ctx, status int, user *models.User) error {
	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}
	return c.Status(status).JSON(fiber.Map{"user": user.ToResponse(), "token": token})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	user, err := h.accounts.Register(c.UserContext(), req)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	h.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("account registered")
	return h.issue(c, fiber.StatusCreated, user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	user, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	return h.issue(c, fiber.StatusOK, user)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	user, err := h.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	return c.JSON(fiber.Map{"user": user.ToResponse()})
}
