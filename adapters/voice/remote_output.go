package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

// RemoteOutput synthesizes with a remote TTS service and plays the clip on the device
type RemoteOutput struct {
	tts     repositories.TextToSpeech
	player  repositories.AudioPlayer
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ repositories.SpeechOutput = (*RemoteOutput)(nil)

// NewRemoteOutput creates a remote output; timeout bounds the synthesis request
func NewRemoteOutput(tts repositories.TextToSpeech, player repositories.AudioPlayer, timeout time.Duration, logger *zap.Logger) *RemoteOutput {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &RemoteOutput{
		tts:     tts,
		player:  player,
		timeout: timeout,
		logger:  logger,
	}
}

func (r *RemoteOutput) Speak(ctx context.Context, text string, settings entities.VoiceSettings, events repositories.SpeechEvents) error {
	if r.tts == nil || r.player == nil {
		return domain.NewError(domain.KindUnsupported, "Speech synthesis is not supported", nil)
	}

	r.Cancel()

	speakCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	voice := repositories.VoiceConfig{
		Language: settings.Language,
		Pitch:    settings.Pitch,
		Rate:     settings.Rate,
		Volume:   settings.Volume,
	}

	go r.run(speakCtx, cancel, text, voice, events)
	return nil
}

func (r *RemoteOutput) run(ctx context.Context, cancel context.CancelFunc, text string, voice repositories.VoiceConfig, events repositories.SpeechEvents) {
	defer cancel()

	synthCtx, synthCancel := context.WithTimeout(ctx, r.timeout)
	clip, err := r.tts.ConvertTextToSpeech(synthCtx, text, voice)
	synthCancel()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.logger.Warn("Speech synthesis failed", zap.Error(err))
		if events.OnError != nil {
			events.OnError(synthesisError(err))
		}
		return
	}

	if events.OnStart != nil {
		events.OnStart()
	}

	err = r.player.Play(ctx, *clip)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.logger.Warn("Playback failed", zap.Error(err))
		if events.OnError != nil {
			events.OnError(synthesisError(err))
		}
		return
	}

	if events.OnEnd != nil {
		events.OnEnd()
	}
}

// Cancel aborts synthesis or playback in progress. Safe to call at any time.
func (r *RemoteOutput) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if r.player != nil {
		r.player.Stop()
	}
}

// synthesisError keeps network failures as they are and reports the rest as synthesis failures
func synthesisError(err error) error {
	if errors.Is(err, domain.ErrNetworkFailure) {
		return err
	}
	return domain.NewError(domain.KindSynthesisFailed, "", err)
}
