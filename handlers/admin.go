package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/db"
	"github.com/yourusername/patronhub/middleware"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type AdminHandler struct {
	userRepo models.UserRepositoryInterface
	backend  string
	dump     services.Dumper
	log      *logrus.Logger
}

func NewAdminHandler(userRepo models.UserRepositoryInterface, backend string, dump services.Dumper, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{userRepo: userRepo, backend: backend, dump: dump, log: log}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	if !isAdmin(c, h.userRepo) {
		return jsonError(c, fiber.StatusForbidden, "Forbidden")
	}
	page := pageParam(c)
	limit := 50
	users, total, err := h.userRepo.List(c.UserContext(), page, limit)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	resp := make([]models.UserResponse, len(users))
	for i := range users {
		resp[i] = users[i].ToResponse()
	}
	return c.JSON(fiber.Map{"users": resp, "page": page, "total": total})
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	if !isAdmin(c, h.userRepo) {
		return jsonError(c, fiber.StatusForbidden, "Forbidden")
	}
	uid, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid user id")
	}
	var req models.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid body")
	}
	if uid == middleware.GetUserID(c) && req.IsAdmin != nil && !*req.IsAdmin {
		return jsonError(c, fiber.StatusBadRequest, "Cannot remove your own admin role")
	}

	user, err := h.userRepo.GetByID(c.UserContext(), uid)
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.IsDisabled != nil {
		user.IsDisabled = *req.IsDisabled
	}
	if err := h.userRepo.UpdateFlags(c.UserContext(), uid, user.IsAdmin, user.IsDisabled); err != nil {
		return storeError(c, h.log, err, "User")
	}
	h.log.WithFields(logrus.Fields{
		"admin_id":    middleware.GetUserID(c),
		"user_id":     uid,
		"is_admin":    user.IsAdmin,
		"is_disabled": user.IsDisabled,
	}).Info("user flags updated")
	return c.JSON(fiber.Map{"user": user.ToResponse()})
}

// Export downloads a gzipped JSON snapshot of every account, project, tier,
// membership, product and order.
func (h *AdminHandler) Export(c *fiber.Ctx) error {
	if !isAdmin(c, h.userRepo) {
		return jsonError(c, fiber.StatusForbidden, "Forbidden")
	}
	data, name, err := services.CreateExport(c.UserContext(), h.backend, db.ExportedCollections, h.dump, time.Now())
	if err != nil {
		h.log.WithError(err).Error("export failed")
		return jsonError(c, fiber.StatusInternalServerError, "Export failed")
	}
	h.log.WithFields(logrus.Fields{
		"admin_id": middleware.GetUserID(c),
		"file":     name,
		"bytes":    len(data),
	}).Info("store exported")
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "application/gzip")
	return c.Send(data)
}

// isAdmin re-reads the caller so revoked or disabled admins lose access before
// their token expires.
func isAdmin(c *fiber.Ctx, repo models.UserRepositoryInterface) bool {
	uid := middleware.GetUserID(c)
	if uid == uuid.Nil {
		return false
	}
	u, err := repo.GetByID(c.UserContext(), uid)
	if err != nil {
		return false
	}
	return u.IsAdmin && !u.IsDisabled
}
