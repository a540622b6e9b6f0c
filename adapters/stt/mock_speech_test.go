package stt

import (
	"context"
	"io"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicechat/domain/repositories"
)

func TestMockSpeechToTextStream(t *testing.T) {
	s := NewMockSpeechToText(zaptest.NewLogger(t))
	stream, err := s.InitTranscribeStreaming(context.Background(), repositories.AudioConfig{Language: "es-ES"})
	if err != nil {
		t.Fatalf("InitTranscribeStreaming failed: %v", err)
	}

	for i := 0; i < len(mockPhrases); i++ {
		if err := stream.Stream([]byte{1, 2}); err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
	}

	var last repositories.RecognitionResult
	for i := 0; i < len(mockPhrases); i++ {
		last, err = stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
	}
	if !last.IsFinal || last.Index != 0 {
		t.Errorf("Expected final result at index 0, got %+v", last)
	}

	stream.Close()
	stream.Close()
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("Expected io.EOF after close, got %v", err)
	}
	if err := stream.Stream([]byte{1}); err == nil {
		t.Error("Expected error streaming to a closed session")
	}
}

func TestMockSpeechToText_TranscribeAudio(t *testing.T) {
	s := NewMockSpeechToText(zaptest.NewLogger(t))
	text, err := s.TranscribeAudio(context.Background(), make([]byte, 2000), repositories.AudioConfig{})
	if err != nil {
		t.Fatalf("TranscribeAudio failed: %v", err)
	}
	if text != mockPhrases[1] {
		t.Errorf("Expected %q, got %q", mockPhrases[1], text)
	}
}
