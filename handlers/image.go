package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/patronhub/services"
)

// MediaUploader turns a multipart image field into a stored JPEG.
type MediaUploader struct {
	storage  services.Storage
	images   *services.ImageProcessor
	maxBytes int64
	log      *logrus.Logger
}

func NewMediaUploader(storage services.Storage, images *services.ImageProcessor, maxBytes int64, log *logrus.Logger) *MediaUploader {
	return &MediaUploader{storage: storage, images: images, maxBytes: maxBytes, log: log}
}

type uploadResult struct {
	URL  string             `json:"url"`
	Meta services.ImageMeta `json:"meta"`
}

// Upload reads field from the request, processes it as kind and stores it under a
// fresh key for that kind. It writes the error response itself and returns ok=false
// on failure.
func (m *MediaUploader) Upload(c *fiber.Ctx, field string, kind services.MediaKind) (*uploadResult, bool, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, false, jsonError(c, fiber.StatusBadRequest, fmt.Sprintf("No %s file provided", field))
	}
	if m.maxBytes > 0 && file.Size > m.maxBytes {
		return nil, false, jsonError(c, fiber.StatusBadRequest, "File too large")
	}
	src, err := file.Open()
	if err != nil {
		return nil, false, jsonError(c, fiber.StatusInternalServerError, "Failed to read upload")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, false, jsonError(c, fiber.StatusInternalServerError, "Failed to read upload")
	}

	processed, err := m.images.Process(kind, file.Filename, data)
	if err != nil {
		if errors.Is(err, services.ErrInvalidUpload) {
			return nil, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image", "details": err.Error()})
		}
		m.log.WithError(err).Error("image processing failed")
		return nil, false, jsonError(c, fiber.StatusInternalServerError, "Failed to process image")
	}

	key := services.MediaKey(kind, uuid.New())
	url, err := m.storage.Save(c.UserContext(), key, bytes.NewReader(processed.Data), "image/jpeg")
	if err != nil {
		m.log.WithError(err).WithField("key", key).Error("failed to store upload")
		return nil, false, jsonError(c, fiber.StatusInternalServerError, "Failed to store image")
	}
	if processed.Meta.Exif.HasLocation {
		m.log.WithField("key", key).Info("location metadata removed from upload")
	}
	return &uploadResult{URL: url, Meta: processed.Meta}, true, nil
}

// Discard removes a previously stored object. Failures are logged only.
func (m *MediaUploader) Discard(ctx context.Context, url *string) {
	if url == nil {
		return
	}
	key := services.StorageKeyFromURL(m.storage, *url)
	if key == "" {
		return
	}
	if err := m.storage.Delete(ctx, key); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("failed to delete replaced media")
	}
}
