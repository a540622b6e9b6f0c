package usecase

import (
	"sync"

	"github.com/satriahrh/voicechat/domain/entities"
)

// SettingsStore holds the voice settings of one session
type SettingsStore struct {
	mu       sync.RWMutex
	settings entities.VoiceSettings
}

// NewSettingsStore starts from the given settings
func NewSettingsStore(initial entities.VoiceSettings) *SettingsStore {
	return &SettingsStore{settings: initial}
}

func (s *SettingsStore) Get() entities.VoiceSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Set validates and stores settings, returning the previous value
func (s *SettingsStore) Set(settings entities.VoiceSettings) (entities.VoiceSettings, error) {
	if err := settings.Validate(); err != nil {
		return entities.VoiceSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.settings
	s.settings = settings
	return prev, nil
}
