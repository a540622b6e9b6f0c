package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/repositories"
)

func TestGoogleTTS_ConvertTextToSpeech(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text:synthesize" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"audioContent":"` + base64.StdEncoding.EncodeToString([]byte("mp3-bytes")) + `"}`))
	}))
	defer srv.Close()

	g, err := NewGoogleTTS(GoogleTTSConfig{APIKey: "k", BaseURL: srv.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create GoogleTTS: %v", err)
	}

	clip, err := g.ConvertTextToSpeech(context.Background(), "Hola", repositories.VoiceConfig{
		Language: "es-ES", Pitch: 1, Rate: 1, Volume: 1,
	})
	if err != nil {
		t.Fatalf("ConvertTextToSpeech failed: %v", err)
	}
	if string(clip.Data) != "mp3-bytes" || clip.Encoding != "MP3" {
		t.Errorf("Unexpected clip %q (%s)", clip.Data, clip.Encoding)
	}

	if got.Input.Text != "Hola" || got.Voice.LanguageCode != "es-ES" || got.Voice.SSMLGender != "NEUTRAL" {
		t.Errorf("Unexpected request %+v", got)
	}
	if got.AudioConfig.AudioEncoding != "MP3" || got.AudioConfig.Pitch != 0 ||
		got.AudioConfig.SpeakingRate != 1 || got.AudioConfig.VolumeGainDb != 0 {
		t.Errorf("Unexpected audio config %+v", got.AudioConfig)
	}
}

func TestGoogleTTS_EmptyAudioIsSynthesisFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"audioContent":""}`))
	}))
	defer srv.Close()

	g, _ := NewGoogleTTS(GoogleTTSConfig{APIKey: "k", BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := g.ConvertTextToSpeech(context.Background(), "Hola", repositories.VoiceConfig{Language: "es-ES"})
	if !errors.Is(err, domain.ErrSynthesisFailed) {
		t.Errorf("Expected synthesis failure, got %v", err)
	}
}

func TestGoogleTTS_RejectsEmptyText(t *testing.T) {
	g, _ := NewGoogleTTS(GoogleTTSConfig{APIKey: "k"}, zaptest.NewLogger(t))
	if _, err := g.ConvertTextToSpeech(context.Background(), "  ", repositories.VoiceConfig{}); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestVoiceMapping(t *testing.T) {
	if got := pitchSemitones(2); got != 20 {
		t.Errorf("pitch 2 -> expected 20 semitones, got %f", got)
	}
	if got := pitchSemitones(0.5); got != -10 {
		t.Errorf("pitch 0.5 -> expected -10 semitones, got %f", got)
	}
	if got := volumeGainDb(0); got != -96 {
		t.Errorf("volume 0 -> expected -96dB, got %f", got)
	}
	if got := volumeGainDb(0.5); math.Abs(got-(-6.0206)) > 0.001 {
		t.Errorf("volume 0.5 -> expected about -6.02dB, got %f", got)
	}
	if got := speakingRate(1.5); got != 1.5 {
		t.Errorf("rate 1.5 -> expected 1.5, got %f", got)
	}
}
