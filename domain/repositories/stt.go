package repositories

import "context"

// SpeechToText abstracts one-shot speech recognition of a recorded buffer
type SpeechToText interface {
	// TranscribeAudio converts audio data to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
}

// StreamingSpeechToText abstracts continuous recognition services
type StreamingSpeechToText interface {
	// InitTranscribeStreaming initializes a streaming transcription session
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionResult is one incremental result of a streaming session.
// Results sharing an Index refine the same utterance; the index grows
// after every final result.
type RecognitionResult struct {
	Index   int
	Text    string
	IsFinal bool
}

type SpeechToTextStreaming interface {
	// Stream sends an audio chunk
	Stream(data []byte) error
	// Recv blocks for the next result; io.EOF means the remote ended the stream
	Recv() (RecognitionResult, error)
	// CloseSend signals the end of audio; results still in flight keep
	// arriving through Recv until io.EOF
	CloseSend() error
	// Close ends the session and drops anything still in flight, it is safe
	// to call more than once
	Close() error
}
