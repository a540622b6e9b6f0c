package repositories

import "context"

// Microphone is the capture device of a connected client
type Microphone interface {
	// Open asks the device to start capturing; it fails with a
	// permission_denied domain error when the device refuses
	Open(ctx context.Context, format AudioConfig) (AudioStream, error)
}

// AudioStream delivers captured frames. The Frames channel is closed
// after Close or when the device stops capturing on its own.
type AudioStream interface {
	Frames() <-chan []byte
	Close() error
}

// AudioPlayer plays encoded audio on the client
type AudioPlayer interface {
	// Play blocks until playback ends, fails, or ctx is done
	Play(ctx context.Context, clip AudioClip) error
	Stop()
}

// Voice is a voice offered by a device speech engine
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Default  bool   `json:"default,omitempty"`
}

// Utterance is a speak request for a device speech engine
type Utterance struct {
	ID     string  `json:"utterance_id"`
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Lang   string  `json:"lang"`
	Pitch  float64 `json:"pitch"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
}

// SpeechEngine is a device-local synthesizer
type SpeechEngine interface {
	Voices() []Voice
	Speak(utterance Utterance, events SpeechEvents) error
	Cancel()
}
