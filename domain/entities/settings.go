package entities

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
)

const (
	MinPitch  = 0.5
	MaxPitch  = 2.0
	MinRate   = 0.5
	MaxRate   = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0

	DefaultLanguage = "es-ES"
)

// VoiceSettings configures recognition language and speech output
type VoiceSettings struct {
	Pitch    float64 `json:"pitch"`
	Rate     float64 `json:"rate"`
	Volume   float64 `json:"volume"`
	AutoPlay bool    `json:"autoPlay"`
	Language string  `json:"language"`
}

// Language is a BCP-47 tag offered to clients
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedLanguages is the fixed list published to clients.
// The controller accepts any well-formed tag.
var SupportedLanguages = []Language{
	{Code: "es-ES", Name: "Español (España)"},
	{Code: "es-MX", Name: "Español (México)"},
	{Code: "en-US", Name: "English (US)"},
	{Code: "en-GB", Name: "English (UK)"},
	{Code: "fr-FR", Name: "Français"},
	{Code: "de-DE", Name: "Deutsch"},
	{Code: "it-IT", Name: "Italiano"},
	{Code: "pt-BR", Name: "Português (Brasil)"},
	{Code: "id-ID", Name: "Bahasa Indonesia"},
	{Code: "ja-JP", Name: "日本語"},
}

// DefaultVoiceSettings returns the settings a new session starts with
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Pitch:    1,
		Rate:     1,
		Volume:   1,
		AutoPlay: true,
		Language: DefaultLanguage,
	}
}

// Validate checks ranges and that the language is a well-formed BCP-47 tag
func (s VoiceSettings) Validate() error {
	if !inRange(s.Pitch, MinPitch, MaxPitch) {
		return fmt.Errorf("pitch must be between %.1f and %.1f, got %f", MinPitch, MaxPitch, s.Pitch)
	}
	if !inRange(s.Rate, MinRate, MaxRate) {
		return fmt.Errorf("rate must be between %.1f and %.1f, got %f", MinRate, MaxRate, s.Rate)
	}
	if !inRange(s.Volume, MinVolume, MaxVolume) {
		return fmt.Errorf("volume must be between %.1f and %.1f, got %f", MinVolume, MaxVolume, s.Volume)
	}
	if _, err := language.Parse(s.Language); err != nil {
		return fmt.Errorf("invalid language tag %q: %w", s.Language, err)
	}
	return nil
}

// inRange rejects NaN, which fails every comparison
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
