package stt

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/repositories"
)

var mockPhrases = []string{"Hola", "Hola, ¿qué tal?", "Hola, ¿qué tal? Cuéntame un chiste."}

// MockSpeechToText is an offline recognizer for local development
type MockSpeechToText struct {
	logger *zap.Logger
}

var (
	_ repositories.SpeechToText          = (*MockSpeechToText)(nil)
	_ repositories.StreamingSpeechToText = (*MockSpeechToText)(nil)
)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// TranscribeAudio picks a phrase by audio size
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	switch {
	case len(audioData) > 10000:
		return mockPhrases[2], nil
	case len(audioData) > 1000:
		return mockPhrases[1], nil
	case len(audioData) > 0:
		return mockPhrases[0], nil
	default:
		return "", nil
	}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger:  s.logger,
		results: make(chan repositories.RecognitionResult, 16),
	}, nil
}

// MockSpeechToTextStream emits a growing interim phrase for every chunk
// and a final result once the phrase list is exhausted
type MockSpeechToTextStream struct {
	logger  *zap.Logger
	results chan repositories.RecognitionResult

	mu     sync.Mutex
	chunks int
	index  int
	closed bool
}

func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	if len(data) == 0 {
		return nil
	}

	phrase := mockPhrases[m.chunks%len(mockPhrases)]
	final := m.chunks%len(mockPhrases) == len(mockPhrases)-1
	m.chunks++

	select {
	case m.results <- repositories.RecognitionResult{Index: m.index, Text: phrase, IsFinal: final}:
	default:
		m.logger.Debug("Dropping mock result, receiver is slow")
	}
	if final {
		m.index++
	}
	return nil
}

func (m *MockSpeechToTextStream) Recv() (repositories.RecognitionResult, error) {
	result, ok := <-m.results
	if !ok {
		return repositories.RecognitionResult{}, io.EOF
	}
	return result, nil
}

// CloseSend ends the session; results are produced on Stream so none are pending
func (m *MockSpeechToTextStream) CloseSend() error {
	return m.Close()
}

func (m *MockSpeechToTextStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.results)
	}
	return nil
}
