package voice

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/repositories"
)

const defaultRequestTimeout = 30 * time.Second

// CaptureConfig describes the audio format requested from the microphone
type CaptureConfig struct {
	SampleRate int
	Encoding   string
}

// DefaultCaptureConfig matches what the recognizers expect from browsers
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: 48000, Encoding: "LINEAR16"}
}

// StreamingSource is a continuous TranscriptSource: microphone frames are
// forwarded to a streaming recognizer until Stop or until the recognizer
// ends the stream.
type StreamingSource struct {
	mic     repositories.Microphone
	stt     repositories.StreamingSpeechToText
	capture CaptureConfig
	logger  *zap.Logger

	mu     sync.Mutex
	active *streamingRun
}

type streamingRun struct {
	audio  repositories.AudioStream
	stream repositories.SpeechToTextStreaming

	mu      sync.Mutex
	stopped bool
}

var _ repositories.TranscriptSource = (*StreamingSource)(nil)

// NewStreamingSource creates a streaming source; a nil microphone or recognizer
// makes Start fail as unsupported
func NewStreamingSource(mic repositories.Microphone, stt repositories.StreamingSpeechToText, capture CaptureConfig, logger *zap.Logger) *StreamingSource {
	return &StreamingSource{
		mic:     mic,
		stt:     stt,
		capture: capture,
		logger:  logger,
	}
}

func (s *StreamingSource) Continuous() bool { return true }

func (s *StreamingSource) Start(ctx context.Context, language string, events repositories.TranscriptEvents) error {
	if s.mic == nil || s.stt == nil {
		return domain.NewError(domain.KindUnsupported, "", nil)
	}

	s.Stop()

	config := repositories.AudioConfig{
		SampleRate: s.capture.SampleRate,
		Encoding:   s.capture.Encoding,
		Language:   language,
	}

	audio, err := s.mic.Open(ctx, config)
	if err != nil {
		return err
	}

	stream, err := s.stt.InitTranscribeStreaming(ctx, config)
	if err != nil {
		audio.Close()
		return err
	}

	run := &streamingRun{audio: audio, stream: stream}
	s.mu.Lock()
	s.active = run
	s.mu.Unlock()

	go s.pump(run)
	go s.receive(run, events)

	s.logger.Info("Streaming transcript source started", zap.String("language", language))
	return nil
}

// Stop releases the active run. Calling it again, or with no run, is a no-op.
func (s *StreamingSource) Stop() error {
	s.mu.Lock()
	run := s.active
	s.active = nil
	s.mu.Unlock()

	if run == nil {
		return nil
	}

	run.mu.Lock()
	run.stopped = true
	run.mu.Unlock()

	var errs []error
	if err := run.audio.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := run.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Abort is Stop: results that arrive after Stop are never delivered
func (s *StreamingSource) Abort() error {
	return s.Stop()
}

func (r *streamingRun) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// pump forwards captured frames. When capture ends the recognizer is told no
// more audio is coming; receive keeps delivering its last results until EOF.
func (s *StreamingSource) pump(run *streamingRun) {
	for frame := range run.audio.Frames() {
		if err := run.stream.Stream(frame); err != nil {
			if !run.isStopped() {
				s.logger.Warn("Failed to stream audio frame", zap.Error(err))
			}
			break
		}
	}
	run.stream.CloseSend()
}

func (s *StreamingSource) receive(run *streamingRun, events repositories.TranscriptEvents) {
	latest := -1
	for {
		result, err := run.stream.Recv()
		if err != nil {
			if run.isStopped() {
				return
			}
			s.releaseIfActive(run)
			if errors.Is(err, io.EOF) {
				s.logger.Info("Recognition stream ended")
				if events.OnEnd != nil {
					events.OnEnd()
				}
				return
			}
			s.logger.Warn("Recognition stream failed", zap.Error(err))
			if events.OnError != nil {
				events.OnError(err)
			}
			return
		}

		// only the newest result index is the working transcript
		if result.Index < latest || run.isStopped() {
			continue
		}
		latest = result.Index
		if events.OnTranscript != nil {
			events.OnTranscript(result.Text, result.IsFinal)
		}
	}
}

// releaseIfActive closes the capture of a run that ended on its own
func (s *StreamingSource) releaseIfActive(run *streamingRun) {
	s.mu.Lock()
	if s.active == run {
		s.active = nil
	}
	s.mu.Unlock()
	run.audio.Close()
}
