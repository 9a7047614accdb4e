package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stokmanager/internal/events"
	"stokmanager/internal/logger"
	"stokmanager/internal/middleware"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteWait    = 10 * time.Second
	streamPongWait     = 2 * streamPingInterval
	streamBuffer       = 32
)

// DeviceStreamHandler pushes presence changes to dashboards over a
// websocket, one JSON message per change.
type DeviceStreamHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
}

func NewDeviceStreamHandler(bus *events.Bus) *DeviceStreamHandler {
	return &DeviceStreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *DeviceStreamHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/devices/stream", h.Stream)
}

func (h *DeviceStreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	changes, cancel := h.bus.Subscribe(streamBuffer)
	defer cancel()

	logger.Debug("Device stream opened", zap.String("request_id", middleware.GetRequestID(c)))

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// readUntilClosed consumes client frames so pongs and close frames are
// processed, and signals when the peer goes away.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
