package repositories

import "context"

// VoiceConfig carries the voice settings a synthesizer honours
type VoiceConfig struct {
	Language string
	Pitch    float64
	Rate     float64
	Volume   float64
}

// AudioClip is encoded audio ready for playback
type AudioClip struct {
	Data     []byte
	Encoding string
}

type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, voice VoiceConfig) (*AudioClip, error)
}
