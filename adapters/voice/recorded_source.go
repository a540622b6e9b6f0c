package voice

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/repositories"
)

// RecordedSource is a push-to-talk TranscriptSource: audio is buffered
// between Start and Stop and transcribed in one request after Stop.
type RecordedSource struct {
	mic     repositories.Microphone
	stt     repositories.SpeechToText
	capture CaptureConfig
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	active *recording
}

type recording struct {
	ctx      context.Context
	audio    repositories.AudioStream
	config   repositories.AudioConfig
	events   repositories.TranscriptEvents
	buffer   bytes.Buffer
	captured chan struct{}
}

var _ repositories.TranscriptSource = (*RecordedSource)(nil)

// NewRecordedSource creates a push-to-talk source; timeout bounds the transcription request
func NewRecordedSource(mic repositories.Microphone, stt repositories.SpeechToText, capture CaptureConfig, timeout time.Duration, logger *zap.Logger) *RecordedSource {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &RecordedSource{
		mic:     mic,
		stt:     stt,
		capture: capture,
		timeout: timeout,
		logger:  logger,
	}
}

func (r *RecordedSource) Continuous() bool { return false }

func (r *RecordedSource) Start(ctx context.Context, language string, events repositories.TranscriptEvents) error {
	if r.mic == nil || r.stt == nil {
		return domain.NewError(domain.KindUnsupported, "", nil)
	}

	r.Abort()

	config := repositories.AudioConfig{
		SampleRate: r.capture.SampleRate,
		Encoding:   r.capture.Encoding,
		Language:   language,
	}
	audio, err := r.mic.Open(ctx, config)
	if err != nil {
		return err
	}

	rec := &recording{
		ctx:      ctx,
		audio:    audio,
		config:   config,
		events:   events,
		captured: make(chan struct{}),
	}
	go rec.collect()

	r.mu.Lock()
	r.active = rec
	r.mu.Unlock()

	r.logger.Info("Recording started", zap.String("language", language))
	return nil
}

// Stop ends capture and transcribes the buffer in the background.
// The single final transcript, or the failure, arrives through the events.
func (r *RecordedSource) Stop() error {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()

	if rec == nil {
		return nil
	}

	err := rec.audio.Close()
	go r.transcribe(rec)
	return err
}

// Abort drops an unfinished recording without transcribing it
func (r *RecordedSource) Abort() error {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()

	if rec == nil {
		return nil
	}
	r.logger.Info("Recording discarded")
	return rec.audio.Close()
}

func (rec *recording) collect() {
	defer close(rec.captured)
	for frame := range rec.audio.Frames() {
		rec.buffer.Write(frame)
	}
}

func (r *RecordedSource) transcribe(rec *recording) {
	<-rec.captured

	if rec.buffer.Len() == 0 {
		r.logger.Info("Recording stopped without audio")
		if rec.events.OnEnd != nil {
			rec.events.OnEnd()
		}
		return
	}

	ctx, cancel := context.WithTimeout(rec.ctx, r.timeout)
	defer cancel()

	text, err := r.stt.TranscribeAudio(ctx, rec.buffer.Bytes(), rec.config)
	if err != nil {
		r.logger.Warn("Transcription failed", zap.Error(err))
		if rec.events.OnError != nil {
			rec.events.OnError(err)
		}
		return
	}

	r.logger.Info("Recording transcribed",
		zap.Int("audioSize", rec.buffer.Len()),
		zap.Int("textLength", len(text)))
	if rec.events.OnTranscript != nil {
		rec.events.OnTranscript(text, true)
	}
}
