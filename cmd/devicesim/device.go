package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
	proto "github.com/satriahrh/voicechat/internal/websocket"
)

const (
	chunkSize     = 1024
	chunkInterval = 100 * time.Millisecond
	silenceChunks = 8
	playbackDelay = 500 * time.Millisecond
)

type deviceOptions struct {
	AudioFile     string
	HasMicrophone bool
	DenyCapture   bool
	SpeechDelay   time.Duration
	OutDir        string
}

// device plays the browser role for one connection
type device struct {
	conn    *websocket.Conn
	options deviceOptions
	logger  *zap.Logger

	// gorilla connections allow a single concurrent writer
	writeMu sync.Mutex

	mu            sync.Mutex
	settings      entities.VoiceSettings
	captureCancel context.CancelFunc
	utterances    map[string]*time.Timer
}

func newDevice(conn *websocket.Conn, options deviceOptions, logger *zap.Logger) *device {
	return &device{
		conn:       conn,
		options:    options,
		logger:     logger,
		settings:   entities.DefaultVoiceSettings(),
		utterances: make(map[string]*time.Timer),
	}
}

func (d *device) Close() error {
	d.stopCapture()
	d.cancelUtterances()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return d.conn.Close()
}

func (d *device) sendJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.WriteMessage(websocket.TextMessage, payload)
}

func (d *device) sendBinary(data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (d *device) hello() error {
	return d.sendJSON(&proto.HelloMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypeHello},
		Voices: []repositories.Voice{
			{Name: "Monica", Language: "es-ES", Default: true},
			{Name: "Paulina", Language: "es-MX"},
			{Name: "Samantha", Language: "en-US"},
		},
		HasMicrophone: d.options.HasMicrophone,
	})
}

func (d *device) sendIntent(t proto.MessageType) error {
	return d.sendJSON(&proto.IntentMessage{BaseMessage: proto.BaseMessage{Type: t}})
}

func (d *device) sendMessage(content string) error {
	return d.sendJSON(&proto.SendMessageMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypeSendMessage},
		Content:     content,
	})
}

func (d *device) speakMessage(id string) error {
	return d.sendJSON(&proto.SpeakMessageMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypeSpeakMessage},
		MessageID:   id,
	})
}

func (d *device) ping() error {
	return d.sendJSON(&proto.PingMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypePing},
		Data:        time.Now().Format(time.RFC3339Nano),
	})
}

// updateSettings edits the last settings the server published and sends them back
func (d *device) updateSettings(edit func(s *entities.VoiceSettings)) error {
	d.mu.Lock()
	settings := d.settings
	d.mu.Unlock()

	edit(&settings)
	return d.sendJSON(&proto.UpdateSettingsMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypeUpdateSettings},
		Settings:    &settings,
	})
}

func (d *device) readLoop(ctx context.Context) error {
	for {
		messageType, message, err := d.conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			d.logger.Debug("Ignoring binary frame", zap.Int("size", len(message)))
			continue
		}
		if err := d.handle(ctx, message); err != nil {
			d.logger.Warn("Failed to handle message", zap.Error(err))
		}
	}
}

func (d *device) handle(ctx context.Context, message []byte) error {
	var base proto.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		return err
	}

	switch base.Type {
	case proto.MessageTypeState:
		var msg proto.StateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		s := msg.State
		fmt.Printf("[state] listening=%t speaking=%t loading=%t transcript=%q error=%q\n",
			s.IsListening, s.IsSpeaking, s.IsLoading, s.Transcript, s.Error)

	case proto.MessageTypeMessage:
		var msg proto.ChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		m := msg.Message
		fmt.Printf("[%s %s] %s\n", m.Role, m.ID, m.Content)

	case proto.MessageTypeSettings:
		var msg proto.SettingsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		d.mu.Lock()
		d.settings = msg.Settings
		d.mu.Unlock()
		fmt.Printf("[settings] %+v\n", msg.Settings)
		for _, l := range msg.Languages {
			fmt.Printf("  %s  %s\n", l.Code, l.Name)
		}

	case proto.MessageTypeError:
		var msg proto.ErrorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		fmt.Printf("[error %s] %s\n", msg.Code, msg.Message)

	case proto.MessageTypePong:
		d.logger.Info("Pong received")

	case proto.MessageTypeCaptureStart:
		var msg proto.CaptureStartMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		return d.startCapture(ctx, msg)

	case proto.MessageTypeCaptureStop:
		d.logger.Info("Capture stopped by server")
		d.stopCapture()

	case proto.MessageTypeSpeak:
		var msg proto.SpeakRequestMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		return d.speak(msg.Utterance)

	case proto.MessageTypeCancelSpeech:
		d.cancelUtterances()

	case proto.MessageTypePlayAudio:
		var msg proto.PlayAudioMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return err
		}
		go d.play(msg)

	case proto.MessageTypeStopAudio:
		d.logger.Info("Playback stopped by server")

	default:
		d.logger.Warn("Received unknown message type", zap.String("type", string(base.Type)))
	}
	return nil
}

func (d *device) startCapture(ctx context.Context, msg proto.CaptureStartMessage) error {
	granted := !d.options.DenyCapture
	d.logger.Info("Capture requested",
		zap.String("captureID", msg.CaptureID),
		zap.String("language", msg.Language),
		zap.Int("sampleRate", msg.SampleRate),
		zap.Bool("granted", granted))

	if err := d.sendJSON(&proto.CaptureAckMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypeCaptureAck},
		CaptureID:   msg.CaptureID,
		Granted:     granted,
	}); err != nil || !granted {
		return err
	}

	audio, err := d.captureAudio()
	if err != nil {
		return err
	}

	captureCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	if d.captureCancel != nil {
		d.captureCancel()
	}
	d.captureCancel = cancel
	d.mu.Unlock()

	go d.stream(captureCtx, msg.CaptureID, audio)
	return nil
}

func (d *device) captureAudio() ([]byte, error) {
	if d.options.AudioFile == "" {
		return make([]byte, silenceChunks*chunkSize), nil
	}
	data, err := os.ReadFile(d.options.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	return data, nil
}

// stream sends audio in 1KB chunks until it runs out or the capture stops
func (d *device) stream(ctx context.Context, captureID string, audio []byte) {
	ticker := time.NewTicker(chunkInterval)
	defer ticker.Stop()

	sent := 0
	for start := 0; start < len(audio); start += chunkSize {
		select {
		case <-ctx.Done():
			d.logger.Info("Capture aborted", zap.String("captureID", captureID), zap.Int("bytes", sent))
			return
		case <-ticker.C:
		}

		end := start + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := d.sendBinary(audio[start:end]); err != nil {
			d.logger.Warn("Failed to send audio chunk", zap.Error(err))
			return
		}
		sent += end - start
	}
	d.logger.Info("Finished streaming audio; use /stop or /commit", zap.String("captureID", captureID), zap.Int("bytes", sent))
}

func (d *device) stopCapture() {
	d.mu.Lock()
	cancel := d.captureCancel
	d.captureCancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// speak simulates a local synthesizer: started now, ended after SpeechDelay
func (d *device) speak(u repositories.Utterance) error {
	fmt.Printf("[speaking %s as %s] %s\n", u.Lang, u.Voice, u.Text)

	if err := d.sendJSON(&proto.SpeechEventMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypeSpeechStarted},
		UtteranceID: u.ID,
	}); err != nil {
		return err
	}

	d.mu.Lock()
	d.utterances[u.ID] = time.AfterFunc(d.options.SpeechDelay, func() {
		d.mu.Lock()
		_, pending := d.utterances[u.ID]
		delete(d.utterances, u.ID)
		d.mu.Unlock()
		if !pending {
			return
		}
		if err := d.sendJSON(&proto.SpeechEventMessage{
			BaseMessage: proto.BaseMessage{Type: proto.MessageTypeSpeechEnded},
			UtteranceID: u.ID,
		}); err != nil {
			d.logger.Warn("Failed to report speech end", zap.Error(err))
		}
	})
	d.mu.Unlock()
	return nil
}

// cancelUtterances reports every pending utterance as interrupted
func (d *device) cancelUtterances() {
	d.mu.Lock()
	pending := d.utterances
	d.utterances = make(map[string]*time.Timer)
	d.mu.Unlock()

	for id, timer := range pending {
		timer.Stop()
		d.sendJSON(&proto.SpeechEventMessage{
			BaseMessage: proto.BaseMessage{Type: proto.MessageTypeSpeechFailed},
			UtteranceID: id,
			Error:       "interrupted",
		})
	}
}

// play saves the clip under OutDir and reports it played
func (d *device) play(msg proto.PlayAudioMessage) {
	result := proto.PlaybackEventMessage{
		BaseMessage: proto.BaseMessage{Type: proto.MessageTypePlaybackEnded},
		PlaybackID:  msg.PlaybackID,
	}

	path, err := d.saveClip(msg)
	if err != nil {
		d.logger.Error("Failed to save audio clip", zap.Error(err))
		result.Type = proto.MessageTypePlaybackFailed
		result.Error = err.Error()
	} else {
		fmt.Printf("[playing %s] %d bytes saved to %s\n", msg.Encoding, len(msg.AudioData), path)
		time.Sleep(playbackDelay)
	}

	if err := d.sendJSON(&result); err != nil {
		d.logger.Warn("Failed to report playback result", zap.Error(err))
	}
}

func (d *device) saveClip(msg proto.PlayAudioMessage) (string, error) {
	if err := os.MkdirAll(d.options.OutDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(d.options.OutDir, fmt.Sprintf("%d_%s%s", time.Now().Unix(), msg.PlaybackID, clipExtension(msg.Encoding)))
	if err := os.WriteFile(path, msg.AudioData, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func clipExtension(encoding string) string {
	switch encoding {
	case "MP3", "mp3", "audio/mpeg":
		return ".mp3"
	case "OGG_OPUS", "audio/ogg":
		return ".ogg"
	case "LINEAR16", "audio/wav":
		return ".wav"
	default:
		return ".bin"
	}
}
