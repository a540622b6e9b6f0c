package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/adapters/remote"
	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/repositories"
)

const (
	defaultGoogleBaseURL       = "https://texttospeech.googleapis.com"
	defaultGoogleAudioEncoding = "MP3"
	defaultSSMLGender          = "NEUTRAL"
	defaultGoogleTimeout       = 30 * time.Second

	maxPitchSemitones = 20.0
	minVolumeGainDb   = -96.0
	maxVolumeGainDb   = 16.0
	minSpeakingRate   = 0.25
	maxSpeakingRate   = 4.0
)

// GoogleTTSConfig configures the text:synthesize REST adapter
type GoogleTTSConfig struct {
	APIKey        string
	BaseURL       string
	AudioEncoding string
	SSMLGender    string
	Timeout       time.Duration
}

// GoogleTTS implements TextToSpeech with Cloud Text-to-Speech
type GoogleTTS struct {
	HTTPClient    *http.Client
	apiKey        string
	baseURL       string
	audioEncoding string
	ssmlGender    string
	logger        *zap.Logger
}

var _ repositories.TextToSpeech = (*GoogleTTS)(nil)

type synthesizeRequest struct {
	Input       synthesisInput   `json:"input"`
	Voice       voiceSelection   `json:"voice"`
	AudioConfig synthAudioConfig `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	SSMLGender   string `json:"ssmlGender"`
}

type synthAudioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	Pitch         float64 `json:"pitch"`
	SpeakingRate  float64 `json:"speakingRate"`
	VolumeGainDb  float64 `json:"volumeGainDb"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// NewGoogleTTS creates a new Google TTS instance
func NewGoogleTTS(config GoogleTTSConfig, logger *zap.Logger) (*GoogleTTS, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
		logger.Info("Using default TTS base URL", zap.String("baseURL", baseURL))
	}

	audioEncoding := config.AudioEncoding
	if audioEncoding == "" {
		audioEncoding = defaultGoogleAudioEncoding
		logger.Info("Using default audio encoding", zap.String("audioEncoding", audioEncoding))
	}

	ssmlGender := config.SSMLGender
	if ssmlGender == "" {
		ssmlGender = defaultSSMLGender
		logger.Info("Using default SSML gender", zap.String("ssmlGender", ssmlGender))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultGoogleTimeout
	}

	return &GoogleTTS{
		HTTPClient:    &http.Client{Timeout: timeout},
		apiKey:        config.APIKey,
		baseURL:       baseURL,
		audioEncoding: audioEncoding,
		ssmlGender:    ssmlGender,
		logger:        logger,
	}, nil
}

// ConvertTextToSpeech synthesizes text into a single encoded clip
func (g *GoogleTTS) ConvertTextToSpeech(ctx context.Context, text string, voice repositories.VoiceConfig) (*repositories.AudioClip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	endpoint := fmt.Sprintf("%s/v1/text:synthesize?key=%s", g.baseURL, url.QueryEscape(g.apiKey))
	request := synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: voiceSelection{
			LanguageCode: voice.Language,
			SSMLGender:   g.ssmlGender,
		},
		AudioConfig: synthAudioConfig{
			AudioEncoding: g.audioEncoding,
			Pitch:         pitchSemitones(voice.Pitch),
			SpeakingRate:  speakingRate(voice.Rate),
			VolumeGainDb:  volumeGainDb(voice.Volume),
		},
	}

	g.logger.Info("Converting text to speech",
		zap.Int("textLength", len(text)),
		zap.String("language", voice.Language))

	var resp synthesizeResponse
	if err := remote.PostJSON(ctx, g.HTTPClient, endpoint, nil, request, &resp); err != nil {
		g.logger.Warn("Synthesize request failed", zap.Error(err))
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil || len(audio) == 0 {
		return nil, domain.NewError(domain.KindSynthesisFailed, "", err)
	}

	return &repositories.AudioClip{Data: audio, Encoding: g.audioEncoding}, nil
}

// pitchSemitones maps the 0.5-2.0 pitch multiplier onto -20..20 semitones
func pitchSemitones(pitch float64) float64 {
	if pitch == 0 {
		return 0
	}
	return clamp((pitch-1)*maxPitchSemitones, -maxPitchSemitones, maxPitchSemitones)
}

func speakingRate(rate float64) float64 {
	if rate == 0 {
		return 1
	}
	return clamp(rate, minSpeakingRate, maxSpeakingRate)
}

// volumeGainDb maps a linear 0-1 volume to decibels of gain
func volumeGainDb(volume float64) float64 {
	if volume <= 0 {
		return minVolumeGainDb
	}
	return clamp(20*math.Log10(volume), minVolumeGainDb, maxVolumeGainDb)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
