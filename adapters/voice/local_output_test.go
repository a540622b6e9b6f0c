package voice

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

func TestSelectVoice(t *testing.T) {
	voices := []repositories.Voice{
		{Name: "Samantha", Language: "en-US"},
		{Name: "Monica", Language: "es_ES"},
		{Name: "Paulina", Language: "es-MX"},
	}

	tests := []struct {
		language string
		want     string
	}{
		{"es-ES", "Monica"},
		{"es-AR", "Monica"},
		{"en-GB", "Samantha"},
		{"ja-JP", "Samantha"},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			v, ok := SelectVoice(voices, tt.language)
			if !ok || v.Name != tt.want {
				t.Errorf("Expected %s, got %s (ok=%v)", tt.want, v.Name, ok)
			}
		})
	}

	if _, ok := SelectVoice(nil, "es-ES"); ok {
		t.Error("Expected no voice from an empty list")
	}
}

func TestLocalOutput_NoVoiceAvailable(t *testing.T) {
	out := NewLocalOutput(&fakeEngine{}, zaptest.NewLogger(t))
	err := out.Speak(context.Background(), "Hola", entities.DefaultVoiceSettings(), repositories.SpeechEvents{})
	if !errors.Is(err, domain.ErrNoVoiceAvailable) {
		t.Errorf("Expected no voice available, got %v", err)
	}
}

func TestLocalOutput_SpeakBuildsUtterance(t *testing.T) {
	engine := &fakeEngine{voices: []repositories.Voice{{Name: "Monica", Language: "es-ES"}}}
	out := NewLocalOutput(engine, zaptest.NewLogger(t))

	settings := entities.DefaultVoiceSettings()
	settings.Pitch = 1.5
	settings.Volume = 0.3
	if err := out.Speak(context.Background(), "Hola", settings, repositories.SpeechEvents{}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	u := engine.spoken[0]
	if u.ID == "" || u.Text != "Hola" || u.Voice != "Monica" || u.Lang != "es-ES" {
		t.Errorf("Unexpected utterance %+v", u)
	}
	if u.Pitch != 1.5 || u.Rate != 1 || u.Volume != 0.3 {
		t.Errorf("Unexpected voice parameters %+v", u)
	}

	out.Cancel()
	if engine.cancelled != 1 {
		t.Errorf("Expected engine cancel, got %d", engine.cancelled)
	}
}

func TestLocalOutput_EngineFailure(t *testing.T) {
	engine := &fakeEngine{
		voices: []repositories.Voice{{Name: "Monica", Language: "es-ES"}},
		err:    errors.New("device busy"),
	}
	out := NewLocalOutput(engine, zaptest.NewLogger(t))

	err := out.Speak(context.Background(), "Hola", entities.DefaultVoiceSettings(), repositories.SpeechEvents{})
	if !errors.Is(err, domain.ErrSynthesisFailed) {
		t.Errorf("Expected synthesis failure, got %v", err)
	}
}
