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

type ShopHandler struct {
	shopRepo  models.ShopRepositoryInterface
	userRepo  models.UserRepositoryInterface
	media     *MediaUploader
	analytics *services.Analytics
	validator *validator.Validate
	log       *logrus.Logger
}

func NewShopHandler(shopRepo models.ShopRepositoryInterface, userRepo models.UserRepositoryInterface, media *MediaUploader, analytics *services.Analytics, v *validator.Validate, log *logrus.Logger) *ShopHandler {
	return &ShopHandler{
		shopRepo:  shopRepo,
		userRepo:  userRepo,
		media:     media,
		analytics: analytics,
		validator: v,
		log:       log,
	}
}

func (h *ShopHandler) CreateProduct(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req models.CreateProductRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	p := &models.Product{
		CreatorID:   userID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Currency:    strings.ToUpper(req.Currency),
		Stock:       req.Stock,
		IsActive:    true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.shopRepo.CreateProduct(c.UserContext(), p); err != nil {
		return storeError(c, h.log, err, "Product")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// GetProduct answers 404 for inactive products.
func (h *ShopHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid product id")
	}
	p, err := h.shopRepo.GetProduct(c.UserContext(), id)
	if err != nil {
		return storeError(c, h.log, err, "Product")
	}
	if !p.IsActive {
		return jsonError(c, fiber.StatusNotFound, "Product not found")
	}
	h.analytics.RecordView(c.UserContext(), services.ViewProduct, p.ID.String())
	return c.JSON(p)
}

func (h *ShopHandler) ListByUser(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByUsername(c.UserContext(), services.NormalizeUsername(c.Params("username")))
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	products, err := h.shopRepo.ListProductsByCreator(c.UserContext(), user.ID, true)
	if err != nil {
		return storeError(c, h.log, err, "Product")
	}
	return c.JSON(fiber.Map{"products": products})
}

func (h *ShopHandler) owned(c *fiber.Ctx) (*models.Product, bool, error) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return nil, false, jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false, jsonError(c, fiber.StatusBadRequest, "Invalid product id")
	}
	p, err := h.shopRepo.GetProduct(c.UserContext(), id)
	if err != nil {
		return nil, false, storeError(c, h.log, err, "Product")
	}
	if p.CreatorID != userID {
		return nil, false, jsonError(c, fiber.StatusForbidden, "Forbidden")
	}
	return p, true, nil
}

func (h *ShopHandler) UpdateProduct(c *fiber.Ctx) error {
	p, ok, err := h.owned(c)
	if !ok {
		return err
	}
	var req models.UpdateProductRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.PriceCents != nil {
		p.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.shopRepo.UpdateProduct(c.UserContext(), p); err != nil {
		return storeError(c, h.log, err, "Product")
	}
	return c.JSON(p)
}

func (h *ShopHandler) DeleteProduct(c *fiber.Ctx) error {
	p, ok, err := h.owned(c)
	if !ok {
		return err
	}
	if err := h.shopRepo.DeleteProduct(c.UserContext(), p.ID); err != nil {
		return storeError(c, h.log, err, "Product")
	}
	h.media.Discard(c.UserContext(), p.ImageURL)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ShopHandler) UploadImage(c *fiber.Ctx) error {
	p, ok, err := h.owned(c)
	if !ok {
		return err
	}
	res, ok, err := h.media.Upload(c, "image", services.MediaProduct)
	if !ok {
		return err
	}
	previous := p.ImageURL
	p.ImageURL = &res.URL
	if err := h.shopRepo.UpdateProduct(c.UserContext(), p); err != nil {
		return storeError(c, h.log, err, "Product")
	}
	h.media.Discard(c.UserContext(), previous)
	return c.JSON(p)
}

// Purchase buys quantity units of :id for the caller.
func (h *ShopHandler) Purchase(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid product id")
	}
	var req models.PurchaseRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	p, err := h.shopRepo.GetProduct(c.UserContext(), id)
	if err != nil {
		return storeError(c, h.log, err, "Product")
	}
	if !p.IsActive {
		return jsonError(c, fiber.StatusNotFound, "Product not found")
	}
	if p.CreatorID == userID {
		return jsonError(c, fiber.StatusBadRequest, "Cannot buy your own product")
	}

	order := models.NewOrder(p, userID, req.Quantity)
	if err := h.shopRepo.Purchase(c.UserContext(), order); err != nil {
		return storeError(c, h.log, err, "Product")
	}
	h.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"product_id": p.ID,
		"buyer_id":   userID,
		"quantity":   order.Quantity,
	}).Info("order placed")
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *ShopHandler) MyOrders(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	orders, err := h.shopRepo.ListOrdersByBuyer(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "Order")
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (h *ShopHandler) MySales(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	orders, err := h.shopRepo.ListOrdersBySeller(c.UserContext(), userID)
	if err != nil {
		return storeError(c, h.log, err, "Order")
	}
	revenue := centsByCurrency(orders, func(o models.Order) (string, int64) { return o.Currency, o.TotalCents })
	return c.JSON(fiber.Map{"orders": orders, "revenue_cents": revenue})
}
