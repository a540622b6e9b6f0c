package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/repositories"
)

const (
	defaultCaptureTimeout = 10 * time.Second
	captureBufferFrames   = 256
)

var errPlaybackStopped = errors.New("playback stopped")

var (
	_ repositories.Microphone   = (*Client)(nil)
	_ repositories.SpeechEngine = (*Client)(nil)
	_ repositories.AudioPlayer  = (*Client)(nil)
)

// Open asks the device to start capturing and waits for its answer
func (c *Client) Open(ctx context.Context, format repositories.AudioConfig) (repositories.AudioStream, error) {
	c.mutex.Lock()
	hasMicrophone := c.hasMicrophone
	c.mutex.Unlock()
	if !hasMicrophone {
		return nil, domain.NewError(domain.KindUnsupported, "", nil)
	}

	id := uuid.NewString()
	ack := make(chan bool, 1)
	c.mutex.Lock()
	c.captureAcks[id] = ack
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		delete(c.captureAcks, id)
		c.mutex.Unlock()
	}()

	c.sendJSON(&CaptureStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeCaptureStart},
		CaptureID:   id,
		SampleRate:  format.SampleRate,
		Encoding:    format.Encoding,
		Language:    format.Language,
	})

	timer := time.NewTimer(c.hub.pipeline.CaptureTimeout)
	defer timer.Stop()

	select {
	case granted := <-ack:
		if !granted {
			c.logger.Info("Microphone permission denied", zap.String("captureID", id))
			return nil, domain.NewError(domain.KindPermissionDenied, "", nil)
		}
	case <-timer.C:
		c.sendJSON(&CaptureStopMessage{BaseMessage: BaseMessage{Type: MessageTypeCaptureStop}, CaptureID: id})
		return nil, domain.NewError(domain.KindNetworkFailure, "Device did not answer the capture request", nil)
	case <-ctx.Done():
		c.sendJSON(&CaptureStopMessage{BaseMessage: BaseMessage{Type: MessageTypeCaptureStop}, CaptureID: id})
		return nil, ctx.Err()
	case <-c.done:
		return nil, domain.NewError(domain.KindNetworkFailure, "Device disconnected", nil)
	}

	stream := &captureStream{
		client: c,
		id:     id,
		frames: make(chan []byte, captureBufferFrames),
	}

	c.mutex.Lock()
	prev := c.capture
	c.capture = stream
	c.mutex.Unlock()
	if prev != nil {
		prev.Close()
	}

	c.logger.Info("Capture started",
		zap.String("captureID", id),
		zap.Int("sampleRate", format.SampleRate),
		zap.String("language", format.Language))
	return stream, nil
}

func (c *Client) resolveCapture(id string, granted bool) {
	c.mutex.Lock()
	ack, ok := c.captureAcks[id]
	c.mutex.Unlock()
	if !ok {
		c.logger.Debug("Ignoring capture_ack for unknown capture", zap.String("captureID", id))
		return
	}
	select {
	case ack <- granted:
	default:
	}
}

// processBinaryAudioChunk routes microphone audio to the active capture
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	stream := c.capture
	c.mutex.Unlock()

	if stream == nil {
		c.logger.Debug("Received audio without an active capture", zap.Int("size", len(data)))
		return
	}
	stream.push(data)
}

func (c *Client) closeCapture() {
	c.mutex.Lock()
	stream := c.capture
	c.mutex.Unlock()
	if stream != nil {
		stream.Close()
	}
}

// captureStream is one granted capture_start
type captureStream struct {
	client *Client
	id     string
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *captureStream) Frames() <-chan []byte {
	return s.frames
}

func (s *captureStream) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- frame:
	default:
		s.client.logger.Warn("Capture buffer full, dropping audio", zap.String("captureID", s.id))
	}
}

// Close stops the capture on the device; it is idempotent
func (s *captureStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.frames)
	s.mu.Unlock()

	c := s.client
	c.mutex.Lock()
	if c.capture == s {
		c.capture = nil
	}
	c.mutex.Unlock()

	c.sendJSON(&CaptureStopMessage{BaseMessage: BaseMessage{Type: MessageTypeCaptureStop}, CaptureID: s.id})
	return nil
}

// Voices returns the voices the device reported in hello
func (c *Client) Voices() []repositories.Voice {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]repositories.Voice(nil), c.voices...)
}

// Speak forwards an utterance to the device speech engine
func (c *Client) Speak(utterance repositories.Utterance, events repositories.SpeechEvents) error {
	c.mutex.Lock()
	c.utterances[utterance.ID] = events
	c.mutex.Unlock()

	c.sendJSON(&SpeakRequestMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeak},
		Utterance:   utterance,
	})
	return nil
}

// Cancel stops device speech; callbacks of cancelled utterances are dropped
func (c *Client) Cancel() {
	c.mutex.Lock()
	c.utterances = make(map[string]repositories.SpeechEvents)
	c.mutex.Unlock()

	c.sendJSON(&BaseMessage{Type: MessageTypeCancelSpeech})
}

func (c *Client) handleSpeechEvent(msg *SpeechEventMessage) {
	c.mutex.Lock()
	events, ok := c.utterances[msg.UtteranceID]
	if ok && msg.Type != MessageTypeSpeechStarted {
		delete(c.utterances, msg.UtteranceID)
	}
	c.mutex.Unlock()

	if !ok {
		c.logger.Debug("Ignoring event for unknown utterance",
			zap.String("type", string(msg.Type)),
			zap.String("utteranceID", msg.UtteranceID))
		return
	}

	switch msg.Type {
	case MessageTypeSpeechStarted:
		if events.OnStart != nil {
			events.OnStart()
		}
	case MessageTypeSpeechEnded:
		if events.OnEnd != nil {
			events.OnEnd()
		}
	case MessageTypeSpeechFailed:
		if events.OnError != nil {
			cause := errors.New(failureReason(msg.Error, "speech engine error"))
			events.OnError(domain.NewError(domain.KindSynthesisFailed, "", cause))
		}
	}
}

// Play sends a clip to the device and blocks until it reports the outcome
func (c *Client) Play(ctx context.Context, clip repositories.AudioClip) error {
	id := uuid.NewString()
	result := make(chan error, 1)

	c.mutex.Lock()
	c.playbacks[id] = result
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		delete(c.playbacks, id)
		c.mutex.Unlock()
	}()

	c.sendJSON(&PlayAudioMessage{
		BaseMessage: BaseMessage{Type: MessageTypePlayAudio},
		PlaybackID:  id,
		Encoding:    clip.Encoding,
		AudioData:   clip.Data,
	})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return domain.NewError(domain.KindNetworkFailure, "Device disconnected", nil)
	}
}

// Stop halts playback on the device and releases pending Play calls
func (c *Client) Stop() {
	c.mutex.Lock()
	for id, result := range c.playbacks {
		select {
		case result <- errPlaybackStopped:
		default:
		}
		delete(c.playbacks, id)
	}
	c.mutex.Unlock()

	c.sendJSON(&BaseMessage{Type: MessageTypeStopAudio})
}

func (c *Client) handlePlaybackEvent(msg *PlaybackEventMessage) {
	c.mutex.Lock()
	result, ok := c.playbacks[msg.PlaybackID]
	c.mutex.Unlock()
	if !ok {
		c.logger.Debug("Ignoring event for unknown playback", zap.String("playbackID", msg.PlaybackID))
		return
	}

	var err error
	if msg.Type == MessageTypePlaybackFailed {
		err = errors.New(failureReason(msg.Error, "playback failed"))
	}
	select {
	case result <- err:
	default:
	}
}
