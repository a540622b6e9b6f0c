package entities

import (
	"math"
	"testing"
)

func TestDefaultVoiceSettings(t *testing.T) {
	s := DefaultVoiceSettings()

	if s.Pitch != 1 || s.Rate != 1 || s.Volume != 1 {
		t.Errorf("Expected pitch/rate/volume 1, got %v/%v/%v", s.Pitch, s.Rate, s.Volume)
	}
	if !s.AutoPlay {
		t.Error("Expected autoPlay to default to true")
	}
	if s.Language != "es-ES" {
		t.Errorf("Expected language es-ES, got %s", s.Language)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Default settings should be valid: %v", err)
	}
}

func TestVoiceSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VoiceSettings)
		wantErr bool
	}{
		{"lowest bounds", func(s *VoiceSettings) { s.Pitch, s.Rate, s.Volume = 0.5, 0.5, 0 }, false},
		{"highest bounds", func(s *VoiceSettings) { s.Pitch, s.Rate, s.Volume = 2, 2, 1 }, false},
		{"pitch too low", func(s *VoiceSettings) { s.Pitch = 0.4 }, true},
		{"rate too high", func(s *VoiceSettings) { s.Rate = 2.1 }, true},
		{"negative volume", func(s *VoiceSettings) { s.Volume = -0.1 }, true},
		{"NaN pitch", func(s *VoiceSettings) { s.Pitch = math.NaN() }, true},
		{"NaN rate", func(s *VoiceSettings) { s.Rate = math.NaN() }, true},
		{"NaN volume", func(s *VoiceSettings) { s.Volume = math.NaN() }, true},
		{"infinite rate", func(s *VoiceSettings) { s.Rate = math.Inf(1) }, true},
		{"other language", func(s *VoiceSettings) { s.Language = "en-US" }, false},
		{"empty language", func(s *VoiceSettings) { s.Language = "" }, true},
		{"malformed language", func(s *VoiceSettings) { s.Language = "not a tag" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultVoiceSettings()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
