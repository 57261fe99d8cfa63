package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/pkg/logger"
)

type DocumentHandler struct {
	reader storage.Reader
}

func NewDocumentHandler(reader storage.Reader) *DocumentHandler {
	return &DocumentHandler{reader: reader}
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.reader.ListDocuments(c.UserContext())
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	out := make([]fiber.Map, 0, len(docs))
	for _, d := range docs {
		out = append(out, fiber.Map{"path": d.Path, "title": d.Title})
	}
	return c.JSON(fiber.Map{"documents": out})
}

// GetDocument serves /documents/* so nested paths like guides/setup.md work unencoded.
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	path, err := url.PathUnescape(c.Params("*"))
	if err != nil || path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document path",
		})
	}

	doc, err := h.reader.GetDocument(c.UserContext(), path)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get document", zap.String("path", path), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get document",
		})
	}

	return c.JSON(fiber.Map{
		"path":         doc.Path,
		"title":        doc.Title,
		"content":      doc.Content,
		"section_path": doc.SectionPath,
	})
}

// GetSection expects the id percent-encoded, since section ids contain '#'.
func (h *DocumentHandler) GetSection(c *fiber.Ctx) error {
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil || id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid section id",
		})
	}

	sec, err := h.reader.GetSection(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Section not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get section", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get section",
		})
	}

	return c.JSON(fiber.Map{
		"id":        sec.ID,
		"doc_path":  sec.DocPath,
		"title":     sec.Title,
		"content":   sec.Content,
		"level":     sec.Level,
		"parent_id": sec.ParentID,
		"path":      sec.Path,
	})
}
