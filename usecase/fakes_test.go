package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

type fakeSource struct {
	mu         sync.Mutex
	continuous bool
	startErr   error
	languages  []string
	events     repositories.TranscriptEvents
	stops      int
	aborts     int
	// when set, Start waits for it to close, like a device slow to grant capture
	hold    chan struct{}
	waiting int
}

func (s *fakeSource) Start(ctx context.Context, language string, events repositories.TranscriptEvents) error {
	s.mu.Lock()
	hold := s.hold
	if hold != nil {
		s.waiting++
	}
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if hold != nil {
		s.waiting--
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.languages = append(s.languages, language)
	s.events = events
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSource) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
	return nil
}

// holdStarts makes every later Start block until the returned func is called
func (s *fakeSource) holdStarts() func() {
	hold := make(chan struct{})
	s.mu.Lock()
	s.hold = hold
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.hold = nil
			s.mu.Unlock()
			close(hold)
		})
	}
}

func (s *fakeSource) blockedStarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

func (s *fakeSource) counts() (stops, aborts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops, s.aborts
}

func (s *fakeSource) Continuous() bool {
	return s.continuous
}

func (s *fakeSource) current() repositories.TranscriptEvents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *fakeSource) startedLanguages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.languages...)
}

type fakeOutput struct {
	mu       sync.Mutex
	speakErr error
	texts    []string
	events   repositories.SpeechEvents
	cancels  int
}

func (o *fakeOutput) Speak(ctx context.Context, text string, settings entities.VoiceSettings, events repositories.SpeechEvents) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.speakErr != nil {
		return o.speakErr
	}
	o.texts = append(o.texts, text)
	o.events = events
	return nil
}

func (o *fakeOutput) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels++
}

func (o *fakeOutput) current() repositories.SpeechEvents {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events
}

func (o *fakeOutput) cancelCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancels
}

func (o *fakeOutput) spoken() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.texts...)
}

type fakeLLM struct {
	mu       sync.Mutex
	calls    int
	complete func(ctx context.Context, turns []entities.ChatTurn) (string, error)
}

func (l *fakeLLM) Complete(ctx context.Context, turns []entities.ChatTurn) (string, error) {
	l.mu.Lock()
	l.calls++
	complete := l.complete
	l.mu.Unlock()
	if complete == nil {
		return "ok", nil
	}
	return complete(ctx, turns)
}

func (l *fakeLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type recordingListener struct {
	mu       sync.Mutex
	states   []entities.SessionState
	messages []entities.Message
	// when set, StateChanged parks the controller loop until it closes
	hold   chan struct{}
	parked int
}

func (l *recordingListener) StateChanged(state entities.SessionState) {
	l.mu.Lock()
	l.states = append(l.states, state)
	hold := l.hold
	if hold != nil {
		l.parked++
	}
	l.mu.Unlock()

	if hold != nil {
		<-hold
	}
}

// holdStateChanges parks the loop on the next state change until released
func (l *recordingListener) holdStateChanges() func() {
	hold := make(chan struct{})
	l.mu.Lock()
	l.hold = hold
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.hold = nil
			l.mu.Unlock()
			close(hold)
		})
	}
}

func (l *recordingListener) parkedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.parked
}

func (l *recordingListener) MessageAppended(message entities.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

func (l *recordingListener) history() []entities.SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entities.SessionState(nil), l.states...)
}

type harness struct {
	controller *SessionController
	source     *fakeSource
	output     *fakeOutput
	llm        *fakeLLM
	listener   *recordingListener
	settings   *SettingsStore
	logs       *observer.ObservedLogs
}

func newHarness(t *testing.T, llm repositories.LargeLanguageModel, config SessionControllerConfig) *harness {
	t.Helper()

	h := &harness{
		source:   &fakeSource{continuous: true},
		output:   &fakeOutput{},
		listener: &recordingListener{},
		settings: NewSettingsStore(entities.DefaultVoiceSettings()),
	}
	if llm == nil {
		h.llm = &fakeLLM{}
		llm = h.llm
	}

	observed, logs := observer.New(zapcore.InfoLevel)
	h.logs = logs
	logger := zap.New(zapcore.NewTee(zaptest.NewLogger(t).Core(), observed))

	h.controller = NewSessionController(llm, h.source, h.output, h.settings, h.listener, config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.controller.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// waitStarts waits until the controller has seen n successful source starts
// and returns the events of the latest one
func (h *harness) waitStarts(t *testing.T, n int) repositories.TranscriptEvents {
	t.Helper()
	eventually(t, func() bool {
		return h.logs.FilterMessage("Listening started").Len() >= n
	})
	return h.source.current()
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
