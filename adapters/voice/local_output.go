package voice

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

// LocalOutput speaks through the device's own speech engine
type LocalOutput struct {
	engine repositories.SpeechEngine
	logger *zap.Logger
}

var _ repositories.SpeechOutput = (*LocalOutput)(nil)

func NewLocalOutput(engine repositories.SpeechEngine, logger *zap.Logger) *LocalOutput {
	return &LocalOutput{engine: engine, logger: logger}
}

func (l *LocalOutput) Speak(ctx context.Context, text string, settings entities.VoiceSettings, events repositories.SpeechEvents) error {
	if l.engine == nil {
		return domain.NewError(domain.KindUnsupported, "Speech synthesis is not supported", nil)
	}

	voice, ok := SelectVoice(l.engine.Voices(), settings.Language)
	if !ok {
		return domain.NewError(domain.KindNoVoiceAvailable, "", nil)
	}

	utterance := repositories.Utterance{
		ID:     uuid.NewString(),
		Text:   text,
		Voice:  voice.Name,
		Lang:   settings.Language,
		Pitch:  settings.Pitch,
		Rate:   settings.Rate,
		Volume: settings.Volume,
	}

	l.logger.Debug("Speaking on device engine",
		zap.String("utteranceID", utterance.ID),
		zap.String("voice", voice.Name))

	if err := l.engine.Speak(utterance, events); err != nil {
		return domain.NewError(domain.KindSynthesisFailed, "", err)
	}
	return nil
}

func (l *LocalOutput) Cancel() {
	if l.engine != nil {
		l.engine.Cancel()
	}
}

// SelectVoice prefers an exact language match, then a voice sharing the
// primary language subtag, then the first voice
func SelectVoice(voices []repositories.Voice, language string) (repositories.Voice, bool) {
	if len(voices) == 0 {
		return repositories.Voice{}, false
	}

	want := normalizeTag(language)
	for _, v := range voices {
		if normalizeTag(v.Language) == want {
			return v, true
		}
	}

	base, _, _ := strings.Cut(want, "-")
	for _, v := range voices {
		if vb, _, _ := strings.Cut(normalizeTag(v.Language), "-"); vb == base {
			return v, true
		}
	}

	return voices[0], true
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(tag, "_", "-"))
}
