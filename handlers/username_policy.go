package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/services"
)

// UsernameHandler serves handle availability checks and suggestions for sign-up forms.
type UsernameHandler struct {
	accounts *services.AccountService
	log      *logrus.Logger
}

func NewUsernameHandler(accounts *services.AccountService, log *logrus.Logger) *UsernameHandler {
	return &UsernameHandler{accounts: accounts, log: log}
}

// Check reports validity, reservation and availability of :name.
func (h *UsernameHandler) Check(c *fiber.Ctx) error {
	status, err := h.accounts.UsernameStatus(c.UserContext(), c.Params("name"))
	if err != nil {
		return storeError(c, h.log, err, "Username")
	}
	return c.JSON(status)
}

// Suggest allocates a handle from first_name and last_name without claiming it.
func (h *UsernameHandler) Suggest(c *fiber.Ctx) error {
	first, last := c.Query("first_name"), c.Query("last_name")
	if len(first) > 100 || len(last) > 100 {
		return jsonError(c, fiber.StatusBadRequest, "Name too long")
	}
	name, err := h.accounts.SuggestUsername(c.UserContext(), first, last)
	if err != nil {
		return storeError(c, h.log, err, "Username")
	}
	return c.JSON(fiber.Map{"username": name})
}
