package validation

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys set by SearchQuery.
const (
	QueryKey = "search_query"
	LimitKey = "search_limit"
)

type Config struct {
	MaxQueryLength int
	DefaultLimit   int
	MaxLimit       int
	Logger         *zap.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 512
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// SearchQuery validates the q and limit parameters and stores the cleaned values in Locals.
func SearchQuery(cfg Config) fiber.Handler {
	cfg = cfg.withDefaults()

	return func(c *fiber.Ctx) error {
		raw := c.Query("q")
		if !utf8.ValidString(raw) {
			return badRequest(c, "Query must be valid UTF-8")
		}

		query := sanitize(raw)
		if query == "" {
			return badRequest(c, "Query parameter q is required")
		}
		if utf8.RuneCountInString(query) > cfg.MaxQueryLength {
			cfg.Logger.Warn("Search query too long",
				zap.String("ip", c.IP()),
				zap.Int("length", len(query)),
			)
			return badRequest(c, "Query exceeds maximum length")
		}

		limit := cfg.DefaultLimit
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > cfg.MaxLimit {
				return badRequest(c, "limit must be an integer between 1 and "+strconv.Itoa(cfg.MaxLimit))
			}
			limit = n
		}

		c.Locals(QueryKey, query)
		c.Locals(LimitKey, limit)
		return c.Next()
	}
}

// JSONBody rejects write requests that carry a non-JSON body.
func JSONBody() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}
		ct := c.Get(fiber.HeaderContentType)
		if ct != "" && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}
		return c.Next()
	}
}

func sanitize(input string) string {
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)
	return strings.TrimSpace(input)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
