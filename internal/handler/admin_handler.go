package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"watchnext-suggestion-service/internal/config"
	"watchnext-suggestion-service/internal/imdb"
)

// AdminHandler exposes the catalog import trigger.
type AdminHandler struct {
	importer *imdb.Importer
	cfg      config.ImportConfig
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(importer *imdb.Importer, cfg config.ImportConfig) *AdminHandler {
	return &AdminHandler{importer: importer, cfg: cfg}
}

// StartImport kicks off an asynchronous IMDb dataset import and returns a
// job id for log correlation. Source overrides may be passed as query
// parameters.
func (h *AdminHandler) StartImport(c fiber.Ctx) error {
	basics := c.Query("basics", h.cfg.BasicsURL)
	ratings := c.Query("ratings", h.cfg.RatingsURL)
	jobID := uuid.NewString()

	go func() {
		log := slog.With("job_id", jobID)
		log.Info("import job started")
		stats, err := h.importer.Run(context.Background(), basics, ratings)
		if err != nil {
			log.Error("import job failed", "error", err)
			return
		}
		log.Info("import job finished", "imported", stats.Imported, "skipped", stats.Skipped)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "import started",
	})
}
