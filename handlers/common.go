package handlers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

const defaultPageSize = 20

// NewValidator returns a validator with the "username" tag bound to policy.
func NewValidator(policy *services.UsernamePolicy) *validator.Validate {
	v := validator.New()
	if err := policy.RegisterValidation(v); err != nil {
		panic(err)
	}
	return v
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// bind parses the body into dst and validates it. When ok is false the 400 response
// has already been written and err is the result of writing it.
func bind(c *fiber.Ctx, v *validator.Validate, dst interface{}) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := v.Struct(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "details": err.Error()})
	}
	return true, nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func pageParam(c *fiber.Ctx) int {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	return page
}

// storeError writes the HTTP response for a repository or service error.
func storeError(c *fiber.Ctx, log *logrus.Logger, err error, what string) error {
	var pwErr *services.PasswordError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, what+" not found")
	case errors.Is(err, models.ErrDuplicateUsername):
		return jsonError(c, fiber.StatusConflict, "Username already taken")
	case errors.Is(err, models.ErrDuplicateEmail):
		return jsonError(c, fiber.StatusConflict, "Email already registered")
	case errors.Is(err, models.ErrOutOfStock):
		return jsonError(c, fiber.StatusConflict, "Insufficient stock")
	case errors.Is(err, models.ErrAlreadyMember):
		return jsonError(c, fiber.StatusConflict, "Already a member of this tier")
	case errors.Is(err, services.ErrInvalidUsername):
		return jsonError(c, fiber.StatusBadRequest, "Invalid or reserved username")
	case errors.As(err, &pwErr):
		return jsonError(c, fiber.StatusBadRequest, pwErr.Reason)
	case errors.Is(err, services.ErrInvalidCredentials):
		return jsonError(c, fiber.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrAccountDisabled):
		return jsonError(c, fiber.StatusForbidden, "Account disabled")
	case errors.Is(err, services.ErrUsernameExhausted):
		return jsonError(c, fiber.StatusConflict, "No username available, please choose one")
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
}

// centsByCurrency sums amounts per ISO currency code; amounts in different
// currencies are never added together.
func centsByCurrency[T any](items []T, amount func(T) (string, int64)) map[string]int64 {
	totals := map[string]int64{}
	for _, it := range items {
		currency, cents := amount(it)
		totals[currency] += cents
	}
	return totals
}
