package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/bytestore"
	"github.com/loopdrill/loopdrill/internal/queue"
	"github.com/loopdrill/loopdrill/internal/types"
)

// Jobs enqueues background work.
type Jobs interface {
	EnqueueJob(job *queue.Job)
}

// MediaHandler administers the blob store (usage, deletion, storage cap)
// and triggers background processing for stored media.
type MediaHandler struct {
	log   zerolog.Logger
	store bytestore.Store
	jobs  Jobs
}

// NewMediaHandler creates a media admin handler. jobs may be nil when no
// worker pool is running.
func NewMediaHandler(log zerolog.Logger, store bytestore.Store, jobs Jobs) *MediaHandler {
	return &MediaHandler{
		log:   log.With().Str("component", "media").Logger(),
		store: store,
		jobs:  jobs,
	}
}

// Usage reports blob store consumption.
func (h *MediaHandler) Usage(c *fiber.Ctx) error {
	u, err := h.store.Usage()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to read usage"})
	}
	return c.JSON(u)
}

// Delete removes one stored blob.
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, bytestore.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Blob not found"})
		}
		h.log.Error().Err(err).Str("blob", id).Msg("blob delete failed")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to delete blob"})
	}
	return c.JSON(fiber.Map{"deleted": id})
}

type transcribeRequest struct {
	BlobID   string  `json:"blobId"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// Transcribe enqueues a transcription job for a stored blob. Results are
// delivered to whichever sessions have the media loaded when it finishes.
func (h *MediaHandler) Transcribe(c *fiber.Ctx) error {
	if h.jobs == nil {
		return c.Status(503).JSON(fiber.Map{"error": "No worker pool running"})
	}
	mediaKey := c.Params("key")
	var req transcribeRequest
	if err := c.BodyParser(&req); err != nil || req.BlobID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transcribe body"})
	}
	if _, err := h.store.Retrieve(req.BlobID); err != nil {
		if errors.Is(err, bytestore.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Blob not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "Failed to read blob"})
	}

	job := queue.NewJob(uuid.New().String(), types.JobTranscribe, mediaKey, req.BlobID, req.Name)
	job.Duration = req.Duration
	h.jobs.EnqueueJob(job)
	h.log.Info().Str("media", mediaKey).Str("job", job.ID).Msg("transcription requested")

	return c.JSON(fiber.Map{"job_id": job.ID, "status": "queued"})
}

type limitRequest struct {
	Bytes int64 `json:"bytes"`
}

// SetLimit adjusts the storage cap; eviction applies immediately.
func (h *MediaHandler) SetLimit(c *fiber.Ctx) error {
	var req limitRequest
	if err := c.BodyParser(&req); err != nil || req.Bytes < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid limit body"})
	}
	if err := h.store.SetLimit(req.Bytes); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to set limit"})
	}
	return c.JSON(fiber.Map{"limit_bytes": req.Bytes})
}
