package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/indexer"
	"github.com/docgraph/backend/pkg/logger"
)

const progressBuffer = 32

// ProgressHandler streams rebuild events to websocket clients.
type ProgressHandler struct {
	events *indexer.Broadcaster
}

func NewProgressHandler(events *indexer.Broadcaster) *ProgressHandler {
	return &ProgressHandler{events: events}
}

// Upgrade rejects plain HTTP requests on the stream route.
func (h *ProgressHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *ProgressHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Progress stream connected")

	events, unsubscribe := h.events.Subscribe(progressBuffer)
	defer func() {
		unsubscribe()
		c.Close()
		logger.Info("Progress stream closed")
	}()

	// The client never sends anything we act on; reading only detects disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(e); err != nil {
				logger.Debug("Failed to write progress event", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
