package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
	"github.com/satriahrh/voicechat/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Pipeline builds the per-connection session. The client is handed to the
// builders as the device platform.
type Pipeline struct {
	LLM             repositories.LargeLanguageModel
	NewSource       func(mic repositories.Microphone) repositories.TranscriptSource
	NewOutput       func(engine repositories.SpeechEngine, player repositories.AudioPlayer) repositories.SpeechOutput
	DefaultSettings entities.VoiceSettings
	Controller      usecase.SessionControllerConfig
	// CaptureTimeout bounds the wait for a capture_ack
	CaptureTimeout time.Duration
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients, keyed by connection id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	pipeline Pipeline
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(pipeline Pipeline, logger *zap.Logger) *Hub {
	if pipeline.CaptureTimeout <= 0 {
		pipeline.CaptureTimeout = defaultCaptureTimeout
	}
	if pipeline.DefaultSettings == (entities.VoiceSettings{}) {
		pipeline.DefaultSettings = entities.DefaultVoiceSettings()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx is done every client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("clientID", client.id),
				zap.String("deviceID", client.deviceID))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// idleClients returns the clients with no inbound traffic since cutoff
func (h *Hub) idleClients(cutoff time.Time) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var idle []*Client
	for _, client := range h.clients {
		if client.lastActivity().Before(cutoff) {
			idle = append(idle, client)
		}
	}
	return idle
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		deviceID = "anonymous"
	}

	client := newClient(hub, conn, uuid.NewString(), deviceID, logger)

	select {
	case hub.register <- client:
	case <-hub.done:
		client.close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
	go client.runIntents()
	go client.runController()

	return nil
}
