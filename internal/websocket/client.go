package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
	"github.com/satriahrh/voicechat/usecase"
)

const (
	sendBufferSize   = 256
	intentBufferSize = 32
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its session
// controller. It is also the device platform: microphone, speech engine and
// audio player all talk to the peer through it.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id       string
	deviceID string
	logger   *zap.Logger

	controller *usecase.SessionController
	validator  *MessageValidator

	// Intents run one at a time off the read loop, so a controller
	// waiting on the device never stalls frame delivery.
	intents chan func(ctx context.Context)

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mutex         sync.Mutex
	lastSeen      time.Time
	hasMicrophone bool
	voices        []repositories.Voice
	capture       *captureStream
	captureAcks   map[string]chan bool
	utterances    map[string]repositories.SpeechEvents
	playbacks     map[string]chan error
}

func newClient(hub *Hub, conn *websocket.Conn, id, deviceID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With(zap.String("clientID", id), zap.String("deviceID", deviceID))

	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan WriteData, sendBufferSize),
		id:          id,
		deviceID:    deviceID,
		logger:      logger,
		validator:   NewMessageValidator(),
		intents:     make(chan func(ctx context.Context), intentBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		lastSeen:    time.Now(),
		captureAcks: make(map[string]chan bool),
		utterances:  make(map[string]repositories.SpeechEvents),
		playbacks:   make(map[string]chan error),
	}

	p := hub.pipeline
	var source repositories.TranscriptSource
	if p.NewSource != nil {
		source = p.NewSource(c)
	}
	var output repositories.SpeechOutput
	if p.NewOutput != nil {
		output = p.NewOutput(c, c)
	}
	c.controller = usecase.NewSessionController(
		p.LLM,
		source,
		output,
		usecase.NewSettingsStore(p.DefaultSettings),
		c,
		p.Controller,
		logger,
	)
	return c
}

// close tears the client down; safe to call more than once
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		c.closeCapture()
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) touch() {
	c.mutex.Lock()
	c.lastSeen = time.Now()
	c.mutex.Unlock()
}

func (c *Client) lastActivity() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lastSeen
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.touch()

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// runIntents executes queued intents against the controller in order
func (c *Client) runIntents() {
	for {
		select {
		case <-c.done:
			return
		case intent := <-c.intents:
			intent(c.ctx)
		}
	}
}

func (c *Client) runController() {
	if err := c.controller.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Session controller stopped unexpectedly", zap.Error(err))
	}
}

// sendJSON queues a text frame. It never blocks; frames for a closed or
// saturated client are dropped.
func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(CreateErrorMessage(code, message))
}

// processMessage processes incoming messages from the device
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, err.Error())
		return
	}

	switch msg := parsed.(type) {
	case *HelloMessage:
		c.handleHello(msg)
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	case *CaptureAckMessage:
		c.resolveCapture(msg.CaptureID, msg.Granted)
	case *SpeechEventMessage:
		c.handleSpeechEvent(msg)
	case *PlaybackEventMessage:
		c.handlePlaybackEvent(msg)

	case *IntentMessage:
		switch msg.Type {
		case MessageTypeStartListening:
			c.enqueueIntent(msg.Type, c.controller.StartListening)
		case MessageTypeStopListening:
			c.enqueueIntent(msg.Type, c.controller.StopListening)
		case MessageTypeSendTranscript:
			c.enqueueIntent(msg.Type, c.controller.SendTranscript)
		case MessageTypeToggleSpeaking:
			c.enqueueIntent(msg.Type, c.controller.ToggleSpeaking)
		}
	case *SendMessageMessage:
		c.enqueueIntent(msg.Type, func(ctx context.Context) error {
			return c.controller.SendMessage(ctx, msg.Content)
		})
	case *SpeakMessageMessage:
		c.enqueueIntent(msg.Type, func(ctx context.Context) error {
			return c.controller.SpeakMessage(ctx, msg.MessageID)
		})
	case *UpdateSettingsMessage:
		settings := *msg.Settings
		c.enqueueIntent(msg.Type, func(ctx context.Context) error {
			if err := c.controller.UpdateSettings(ctx, settings); err != nil {
				return err
			}
			c.sendJSON(&SettingsMessage{
				BaseMessage: BaseMessage{Type: MessageTypeSettings},
				Settings:    c.controller.Settings(),
			})
			return nil
		})
	}
}

func (c *Client) enqueueIntent(name MessageType, run func(ctx context.Context) error) {
	intent := func(ctx context.Context) {
		if err := run(ctx); err != nil {
			c.logger.Info("Intent failed", zap.String("intent", string(name)), zap.Error(err))
			c.sendError(errorCode(err), domain.Describe(err))
		}
	}

	select {
	case c.intents <- intent:
	default:
		c.sendError(ErrorCodeBusy, "Too many pending requests")
	}
}

func (c *Client) handleHello(msg *HelloMessage) {
	c.mutex.Lock()
	c.hasMicrophone = msg.HasMicrophone
	c.voices = append([]repositories.Voice(nil), msg.Voices...)
	c.mutex.Unlock()

	c.logger.Info("Device connected",
		zap.Bool("hasMicrophone", msg.HasMicrophone),
		zap.Int("voices", len(msg.Voices)))

	c.sendJSON(&SettingsMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSettings},
		Settings:    c.controller.Settings(),
		Languages:   entities.SupportedLanguages,
	})
	c.sendJSON(&StateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeState},
		State:       c.controller.State(),
	})
	for _, m := range c.controller.Messages() {
		c.MessageAppended(m)
	}
}

// StateChanged implements usecase.Listener
func (c *Client) StateChanged(state entities.SessionState) {
	c.sendJSON(&StateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeState},
		State:       state,
	})
}

// MessageAppended implements usecase.Listener
func (c *Client) MessageAppended(message entities.Message) {
	c.sendJSON(&ChatMessage{
		BaseMessage: BaseMessage{Type: MessageTypeMessage},
		Message:     message,
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrBusy):
		return ErrorCodeBusy
	case errors.Is(err, usecase.ErrSpeaking):
		return ErrorCodeSpeaking
	case errors.Is(err, usecase.ErrListening):
		return ErrorCodeListening
	case errors.Is(err, usecase.ErrInvalidSettings):
		return ErrorCodeInvalidSettings
	case errors.Is(err, usecase.ErrMessageNotFound):
		return ErrorCodeNotFound
	}
	if kind, ok := domain.KindOf(err); ok {
		return string(kind)
	}
	return ErrorCodeInternal
}
