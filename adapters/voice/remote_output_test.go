package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

type speechRecorder struct {
	starts chan struct{}
	ends   chan struct{}
	errs   chan error
}

func newSpeechRecorder() *speechRecorder {
	return &speechRecorder{
		starts: make(chan struct{}, 4),
		ends:   make(chan struct{}, 4),
		errs:   make(chan error, 4),
	}
}

func (r *speechRecorder) events() repositories.SpeechEvents {
	return repositories.SpeechEvents{
		OnStart: func() { r.starts <- struct{}{} },
		OnEnd:   func() { r.ends <- struct{}{} },
		OnError: func(err error) { r.errs <- err },
	}
}

func TestRemoteOutput_SynthesizeAndPlay(t *testing.T) {
	tts := &fakeTTS{
		clip:   &repositories.AudioClip{Data: []byte("mp3"), Encoding: "MP3"},
		called: make(chan repositories.VoiceConfig, 1),
	}
	player := &fakePlayer{}
	out := NewRemoteOutput(tts, player, time.Second, zaptest.NewLogger(t))
	rec := newSpeechRecorder()

	settings := entities.DefaultVoiceSettings()
	settings.Rate = 1.25
	if err := out.Speak(context.Background(), "Hola", settings, rec.events()); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	voice := waitFor(t, tts.called)
	if voice.Language != "es-ES" || voice.Rate != 1.25 {
		t.Errorf("Unexpected voice config %+v", voice)
	}

	waitFor(t, rec.starts)
	waitFor(t, rec.ends)

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 1 || string(player.played[0].Data) != "mp3" {
		t.Errorf("Unexpected played clips %+v", player.played)
	}
}

func TestRemoteOutput_SynthesisFailure(t *testing.T) {
	out := NewRemoteOutput(&fakeTTS{err: errors.New("bad voice")}, &fakePlayer{}, time.Second, zaptest.NewLogger(t))
	rec := newSpeechRecorder()

	out.Speak(context.Background(), "Hola", entities.DefaultVoiceSettings(), rec.events())

	err := waitFor(t, rec.errs)
	if !errors.Is(err, domain.ErrSynthesisFailed) {
		t.Errorf("Expected synthesis failure, got %v", err)
	}
}

func TestRemoteOutput_NetworkFailureKept(t *testing.T) {
	out := NewRemoteOutput(&fakeTTS{err: domain.NewError(domain.KindNetworkFailure, "Request timed out", nil)}, &fakePlayer{}, time.Second, zaptest.NewLogger(t))
	rec := newSpeechRecorder()

	out.Speak(context.Background(), "Hola", entities.DefaultVoiceSettings(), rec.events())

	err := waitFor(t, rec.errs)
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Errorf("Expected network failure, got %v", err)
	}
}

func TestRemoteOutput_CancelDuringPlayback(t *testing.T) {
	player := &fakePlayer{block: true}
	out := NewRemoteOutput(&fakeTTS{clip: &repositories.AudioClip{Data: []byte("x")}}, player, time.Second, zaptest.NewLogger(t))
	rec := newSpeechRecorder()

	out.Speak(context.Background(), "Hola", entities.DefaultVoiceSettings(), rec.events())
	waitFor(t, rec.starts)

	out.Cancel()
	out.Cancel()

	select {
	case <-rec.ends:
		t.Error("OnEnd must not fire after cancel")
	case err := <-rec.errs:
		t.Errorf("OnError must not fire after cancel, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if player.stopped != 1 {
		t.Errorf("Expected player stop once, got %d", player.stopped)
	}
}

func TestRemoteOutput_Unsupported(t *testing.T) {
	out := NewRemoteOutput(nil, nil, time.Second, zaptest.NewLogger(t))
	err := out.Speak(context.Background(), "Hola", entities.DefaultVoiceSettings(), repositories.SpeechEvents{})
	if !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("Expected unsupported, got %v", err)
	}
}
