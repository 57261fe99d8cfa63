package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/indexer"
	"github.com/docgraph/backend/pkg/logger"
)

type Rebuilder interface {
	Rebuild(ctx context.Context) (*indexer.Report, error)
	Running() bool
}

type IndexHandler struct {
	indexer Rebuilder
}

func NewIndexHandler(ix Rebuilder) *IndexHandler {
	return &IndexHandler{indexer: ix}
}

// Rebuild runs a full rebuild and responds with its report.
func (h *IndexHandler) Rebuild(c *fiber.Ctx) error {
	report, err := h.indexer.Rebuild(c.UserContext())
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An index rebuild is already running",
		})
	}
	if err != nil {
		logger.Error("Index rebuild failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Index rebuild failed",
		})
	}

	return c.JSON(report)
}

func (h *IndexHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"running": h.indexer.Running()})
}
