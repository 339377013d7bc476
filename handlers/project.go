package handlers

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/middleware"
	"github.com/yourusername/patronhub/models"
	"github.com/yourusername/patronhub/services"
)

type ProjectHandler struct {
	projectRepo models.ProjectRepositoryInterface
	userRepo    models.UserRepositoryInterface
	media       *MediaUploader
	analytics   *services.Analytics
	viewer      func(*fiber.Ctx) uuid.UUID
	validator   *validator.Validate
	log         *logrus.Logger
}

// NewProjectHandler builds the handler. viewer identifies the caller on public routes
// so creators can read their own drafts.
func NewProjectHandler(projectRepo models.ProjectRepositoryInterface, userRepo models.UserRepositoryInterface, media *MediaUploader, analytics *services.Analytics, viewer func(*fiber.Ctx) uuid.UUID, v *validator.Validate, log *logrus.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		media:       media,
		analytics:   analytics,
		viewer:      viewer,
		validator:   v,
		log:         log,
	}
}

func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req models.CreateProjectRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	p := &models.Project{
		CreatorID: userID,
		Title:     strings.TrimSpace(req.Title),
		Summary:   strings.TrimSpace(req.Summary),
		Body:      req.Body,
	}
	status := req.Status
	if status == "" {
		status = models.ProjectDraft
	}
	p.SetStatus(status, time.Now().UTC())
	if err := h.projectRepo.Create(c.UserContext(), p); err != nil {
		return storeError(c, h.log, err, "Project")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// Get returns a project. Drafts are only visible to their creator.
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "Invalid project id")
	}
	p, err := h.projectRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return storeError(c, h.log, err, "Project")
	}
	if !p.IsPublished() {
		if h.viewer(c) != p.CreatorID {
			return jsonError(c, fiber.StatusNotFound, "Project not found")
		}
		return c.JSON(p)
	}
	h.analytics.RecordView(c.UserContext(), services.ViewProject, p.ID.String())
	return c.JSON(p)
}

func (h *ProjectHandler) ListByUser(c *fiber.Ctx) error {
	user, err := h.userRepo.GetByUsername(c.UserContext(), services.NormalizeUsername(c.Params("username")))
	if err != nil {
		return storeError(c, h.log, err, "User")
	}
	page := pageParam(c)
	projects, total, err := h.projectRepo.ListPublishedByCreator(c.UserContext(), user.ID, page, defaultPageSize)
	if err != nil {
		return storeError(c, h.log, err, "Project")
	}
	return c.JSON(fiber.Map{"projects": projects, "page": page, "total": total})
}

// owned loads :id and checks the caller created it. On failure the response is
// already written.
func (h *ProjectHandler) owned(c *fiber.Ctx) (*models.Project, bool, error) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return nil, false, jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false, jsonError(c, fiber.StatusBadRequest, "Invalid project id")
	}
	p, err := h.projectRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, false, storeError(c, h.log, err, "Project")
	}
	if p.CreatorID != userID {
		return nil, false, jsonError(c, fiber.StatusForbidden, "Forbidden")
	}
	return p, true, nil
}

func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	p, ok, err := h.owned(c)
	if !ok {
		return err
	}
	var req models.UpdateProjectRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
	}
	if req.Summary != nil {
		p.Summary = strings.TrimSpace(*req.Summary)
	}
	if req.Body != nil {
		p.Body = *req.Body
	}
	if req.Status != nil {
		p.SetStatus(*req.Status, time.Now().UTC())
	}
	if err := h.projectRepo.Update(c.UserContext(), p); err != nil {
		return storeError(c, h.log, err, "Project")
	}
	return c.JSON(p)
}

func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	p, ok, err := h.owned(c)
	if !ok {
		return err
	}
	if err := h.projectRepo.Delete(c.UserContext(), p.ID); err != nil {
		return storeError(c, h.log, err, "Project")
	}
	h.media.Discard(c.UserContext(), p.CoverURL)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProjectHandler) UploadCover(c *fiber.Ctx) error {
	p, ok, err := h.owned(c)
	if !ok {
		return err
	}
	res, ok, err := h.media.Upload(c, "cover", services.MediaCover)
	if !ok {
		return err
	}
	previous := p.CoverURL
	p.CoverURL = &res.URL
	p.CoverBlurhash = &res.Meta.Blurhash
	if err := h.projectRepo.Update(c.UserContext(), p); err != nil {
		return storeError(c, h.log, err, "Project")
	}
	h.media.Discard(c.UserContext(), previous)
	return c.JSON(p)
}
