package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/graph"
	"github.com/docgraph/backend/internal/metrics"
	"github.com/docgraph/backend/internal/middleware/validation"
	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/pkg/logger"
)

// Cache is the optional read-through cache in front of graph export and search. Entries are
// keyed by the index generation observed before the query ran.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	GetGraph(ctx context.Context, gen int64) (*models.Graph, bool, error)
	SetGraph(ctx context.Context, gen int64, g *models.Graph) error
	GetSearch(ctx context.Context, gen int64, query string, limit int) ([]models.SearchHit, bool, error)
	SetSearch(ctx context.Context, gen int64, query string, limit int, hits []models.SearchHit) error
}

type GraphHandler struct {
	reader storage.Reader
	cache  Cache
	opts   graph.Options
}

// NewGraphHandler accepts a nil cache.
func NewGraphHandler(reader storage.Reader, cache Cache, opts graph.Options) *GraphHandler {
	return &GraphHandler{reader: reader, cache: cache, opts: opts}
}

// generation returns false when the cache is absent or unreachable, in which case the request
// bypasses it entirely.
func (h *GraphHandler) generation(ctx context.Context) (int64, bool) {
	if h.cache == nil {
		return 0, false
	}
	gen, err := h.cache.Generation(ctx)
	if err != nil {
		logger.Warn("Cache generation read failed", zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (h *GraphHandler) GetGraph(c *fiber.Ctx) error {
	ctx := c.UserContext()
	gen, cached := h.generation(ctx)

	if cached {
		g, ok, err := h.cache.GetGraph(ctx, gen)
		if err != nil {
			logger.Warn("Graph cache read failed", zap.Error(err))
		} else if ok {
			return c.JSON(g)
		}
	}

	g, err := graph.Export(ctx, h.reader, h.opts)
	if err != nil {
		logger.Error("Failed to export graph", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export graph",
		})
	}

	if cached {
		if err := h.cache.SetGraph(ctx, gen, g); err != nil {
			logger.Warn("Graph cache write failed", zap.Error(err))
		}
	}

	return c.JSON(g)
}

func (h *GraphHandler) Search(c *fiber.Ctx) error {
	ctx := c.UserContext()
	query, _ := c.Locals(validation.QueryKey).(string)
	limit, _ := c.Locals(validation.LimitKey).(int)
	gen, cached := h.generation(ctx)

	if cached {
		hits, ok, err := h.cache.GetSearch(ctx, gen, query, limit)
		if err != nil {
			logger.Warn("Search cache read failed", zap.Error(err))
		} else if ok {
			return c.JSON(fiber.Map{"query": query, "results": hits})
		}
	}

	start := time.Now()
	hits, err := h.reader.Search(ctx, query, limit)
	if err != nil {
		metrics.SearchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, storage.ErrEmptyQuery) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query parameter q is required",
			})
		}
		logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}
	metrics.SearchDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	if hits == nil {
		hits = []models.SearchHit{}
	}
	if cached {
		if err := h.cache.SetSearch(ctx, gen, query, limit, hits); err != nil {
			logger.Warn("Search cache write failed", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"query": query, "results": hits})
}
