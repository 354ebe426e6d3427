package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/storage"
	"github.com/loopdrill/loopdrill/internal/types"
)

// BookmarkHandler is the REST surface over persisted bookmarks. Live
// sessions mutate bookmarks through the engine; this handler serves
// cold reads and out-of-session edits (imports, bulk cleanup).
type BookmarkHandler struct {
	log zerolog.Logger
	db  *storage.DB
}

// NewBookmarkHandler creates a bookmark handler.
func NewBookmarkHandler(log zerolog.Logger, db *storage.DB) *BookmarkHandler {
	return &BookmarkHandler{
		log: log.With().Str("component", "bookmarks").Logger(),
		db:  db,
	}
}

// List returns all bookmarks for a media item, start-ordered.
func (h *BookmarkHandler) List(c *fiber.Ctx) error {
	mediaKey := c.Params("key")
	bookmarks, err := h.db.BookmarksFor(mediaKey)
	if err != nil {
		h.log.Error().Err(err).Str("media", mediaKey).Msg("bookmark list failed")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to list bookmarks"})
	}
	return c.JSON(bookmarks)
}

// Create persists a new bookmark for a media item.
func (h *BookmarkHandler) Create(c *fiber.Ctx) error {
	mediaKey := c.Params("key")
	var b types.Bookmark
	if err := c.BodyParser(&b); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid bookmark body"})
	}
	if b.End-b.Start <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Bookmark needs positive duration"})
	}
	b.MediaKey = mediaKey
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	if err := h.db.SaveBookmark(b); err != nil {
		h.log.Error().Err(err).Str("id", b.ID).Msg("bookmark save failed")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to save bookmark"})
	}
	return c.Status(201).JSON(b)
}

// Update replaces a persisted bookmark.
func (h *BookmarkHandler) Update(c *fiber.Ctx) error {
	var b types.Bookmark
	if err := c.BodyParser(&b); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid bookmark body"})
	}
	b.ID = c.Params("id")
	if b.End-b.Start <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Bookmark needs positive duration"})
	}
	if err := h.db.UpdateBookmark(b); err != nil {
		h.log.Error().Err(err).Str("id", b.ID).Msg("bookmark update failed")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to update bookmark"})
	}
	return c.JSON(b)
}

// Delete removes a persisted bookmark.
func (h *BookmarkHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.db.DeleteBookmark(id); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("bookmark delete failed")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to delete bookmark"})
	}
	return c.JSON(fiber.Map{"deleted": id})
}

// Import persists a batch of bookmarks, typically a restored export.
// Invalid entries are skipped; the response reports how many landed.
func (h *BookmarkHandler) Import(c *fiber.Ctx) error {
	mediaKey := c.Params("key")
	var batch []types.Bookmark
	if err := c.BodyParser(&batch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid import body"})
	}
	imported := 0
	for _, b := range batch {
		if b.End-b.Start <= 0 {
			continue
		}
		b.MediaKey = mediaKey
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = time.Now()
		}
		if err := h.db.SaveBookmark(b); err != nil {
			h.log.Warn().Err(err).Str("id", b.ID).Msg("imported bookmark not saved")
			continue
		}
		imported++
	}
	return c.JSON(fiber.Map{"imported": imported, "received": len(batch)})
}

// GetPreferences returns the stored UI defaults.
func (h *BookmarkHandler) GetPreferences(c *fiber.Ctx) error {
	prefs, err := h.db.Preferences()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load preferences"})
	}
	return c.JSON(prefs)
}

// PutPreferences stores UI defaults.
func (h *BookmarkHandler) PutPreferences(c *fiber.Ctx) error {
	var prefs types.Preferences
	if err := c.BodyParser(&prefs); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid preferences body"})
	}
	if err := h.db.SavePreferences(prefs); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to save preferences"})
	}
	return c.JSON(prefs)
}
