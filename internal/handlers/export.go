package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/bytestore"
	"github.com/loopdrill/loopdrill/internal/export"
	"github.com/loopdrill/loopdrill/internal/types"
)

// ExportHandler renders transcript segments to text, SRT or WebVTT and
// optionally mirrors the artifact to Google Drive.
type ExportHandler struct {
	log    zerolog.Logger
	mirror *bytestore.DriveMirror // nil when Drive is not configured
}

// NewExportHandler creates an export handler. mirror may be nil.
func NewExportHandler(log zerolog.Logger, mirror *bytestore.DriveMirror) *ExportHandler {
	return &ExportHandler{
		log:    log.With().Str("component", "export").Logger(),
		mirror: mirror,
	}
}

type exportRequest struct {
	Format   string                    `json:"format"`
	Name     string                    `json:"name"`
	Segments []types.TranscriptSegment `json:"segments"`
	Mirror   bool                      `json:"mirror"`
}

// Handle renders the requested format. Content comes back inline; when
// mirroring is requested and available, the Drive link rides along.
func (h *ExportHandler) Handle(c *fiber.Ctx) error {
	var req exportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid export body"})
	}
	if len(req.Segments) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Nothing to export"})
	}

	content, err := export.Render(req.Format, req.Segments)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{
		"format":  req.Format,
		"content": content,
	}

	if req.Mirror {
		if h.mirror == nil {
			resp["mirror_error"] = "Google Drive not configured"
		} else {
			name := req.Name
			if name == "" {
				name = "transcript"
			}
			link, err := h.mirror.Upload(fmt.Sprintf("%s.%s", name, req.Format), []byte(content))
			if err != nil {
				h.log.Warn().Err(err).Str("name", name).Msg("drive mirror failed")
				resp["mirror_error"] = err.Error()
			} else {
				resp["drive_link"] = link
			}
		}
	}

	return c.JSON(resp)
}
