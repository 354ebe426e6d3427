// Package handlers exposes the HTTP surface: media upload, bookmark CRUD,
// transcript exports, preferences and diagnostics.
package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/bytestore"
	"github.com/loopdrill/loopdrill/internal/transcription"
)

// UploadHandler ingests media files into the blob store. The returned
// media key and blob id are what a session loads over the websocket.
type UploadHandler struct {
	log       zerolog.Logger
	store     bytestore.Store
	maxSizeMB int
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(log zerolog.Logger, store bytestore.Store, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		log:       log.With().Str("component", "upload").Logger(),
		store:     store,
		maxSizeMB: maxSizeMB,
	}
}

// Handle processes a multipart media upload.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	name := c.FormValue("name")
	if name == "" {
		name = file.Filename
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !transcription.ValidateAudioFormat(file.Filename) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported media format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_READ_FAILED",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_READ_FAILED",
		})
	}

	blobID, err := h.store.Store(data)
	if err != nil {
		h.log.Error().Err(err).Str("name", name).Msg("blob store failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to store file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	mediaKey := uuid.New().String()
	h.log.Info().Str("media", mediaKey).Str("blob", blobID).Str("name", name).
		Int64("bytes", file.Size).Msg("media uploaded")

	return c.JSON(fiber.Map{
		"media_key": mediaKey,
		"blob_id":   blobID,
		"name":      name,
		"status":    "stored",
	})
}
