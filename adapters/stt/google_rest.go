package stt

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/adapters/remote"
	"github.com/satriahrh/voicechat/domain/repositories"
)

const (
	defaultSpeechBaseURL = "https://speech.googleapis.com"
	defaultTimeout       = 30 * time.Second
)

// GoogleRecognizeConfig configures the REST recognize adapter
type GoogleRecognizeConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GoogleRecognizer implements SpeechToText over the speech:recognize REST call
type GoogleRecognizer struct {
	HTTPClient *http.Client
	apiKey     string
	baseURL    string
	logger     *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleRecognizer)(nil)

type recognizeRequest struct {
	Audio  recognizeAudio  `json:"audio"`
	Config recognizeConfig `json:"config"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// NewGoogleRecognizer creates the REST recognizer
func NewGoogleRecognizer(config GoogleRecognizeConfig, logger *zap.Logger) (*GoogleRecognizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSpeechBaseURL
		logger.Info("Using default speech base URL", zap.String("baseURL", baseURL))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &GoogleRecognizer{
		HTTPClient: &http.Client{Timeout: timeout},
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		logger:     logger,
	}, nil
}

// TranscribeAudio sends the whole buffer and joins result transcripts with newlines
func (g *GoogleRecognizer) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/speech:recognize?key=%s", g.baseURL, url.QueryEscape(g.apiKey))

	g.logger.Info("Transcribing recorded audio",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))

	var resp recognizeResponse
	err := remote.PostJSON(ctx, g.HTTPClient, endpoint, nil, recognizeRequest{
		Audio: recognizeAudio{Content: base64.StdEncoding.EncodeToString(audioData)},
		Config: recognizeConfig{
			Encoding:        config.Encoding,
			SampleRateHertz: config.SampleRate,
			LanguageCode:    config.Language,
		},
	}, &resp)
	if err != nil {
		g.logger.Warn("Recognize request failed", zap.Error(err))
		return "", err
	}

	lines := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		lines = append(lines, result.Alternatives[0].Transcript)
	}
	return strings.Join(lines, "\n"), nil
}
