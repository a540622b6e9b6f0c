package repositories

import (
	"context"

	"github.com/satriahrh/voicechat/domain/entities"
)

// TranscriptEvents receives transcript source callbacks. Nil funcs are skipped.
type TranscriptEvents struct {
	OnTranscript func(text string, isFinal bool)
	OnError      func(err error)
	OnEnd        func()
}

// TranscriptSource produces transcribed text from the user's speech.
// Start may return a domain error of kind permission_denied or unsupported.
// Stop and Abort are idempotent.
type TranscriptSource interface {
	Start(ctx context.Context, language string, events TranscriptEvents) error
	// Stop ends capture; a recorded source still delivers its transcript
	Stop() error
	// Abort ends capture and drops whatever has not been delivered yet
	Abort() error
	// Continuous reports whether the source streams results until stopped
	Continuous() bool
}

// SpeechEvents receives speech output callbacks. Nil funcs are skipped.
type SpeechEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// SpeechOutput speaks text. Speak returns once the utterance is queued;
// completion is reported through events. Cancel is always safe.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, settings entities.VoiceSettings, events SpeechEvents) error
	Cancel()
}
