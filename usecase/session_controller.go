package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

var (
	ErrSpeaking          = errors.New("cannot listen while speaking")
	ErrListening         = errors.New("cannot speak while listening")
	ErrBusy              = errors.New("a message is already being sent")
	ErrInvalidSettings   = errors.New("invalid voice settings")
	ErrMessageNotFound   = errors.New("message not found")
	ErrControllerStopped = errors.New("session controller stopped")
)

const (
	defaultRequestTimeout = 30 * time.Second

	sendFailedMessage  = "Failed to send message"
	speakFailedMessage = "Failed to speak message"
)

// Listener observes a session. Calls come from the controller loop, once
// per processed event, and must not call back into the controller.
type Listener interface {
	StateChanged(state entities.SessionState)
	MessageAppended(message entities.Message)
}

// SessionControllerConfig tunes a controller
type SessionControllerConfig struct {
	// RequestTimeout bounds every chat request
	RequestTimeout time.Duration
	// Clock stamps messages; defaults to time.Now
	Clock func() time.Time
}

// SessionController is the voice session state machine. Every transition
// runs on the Run goroutine; intents block until their event is processed
// and adapter callbacks are queued without blocking.
type SessionController struct {
	llm      repositories.LargeLanguageModel
	source   repositories.TranscriptSource
	output   repositories.SpeechOutput
	settings *SettingsStore
	listener Listener
	timeout  time.Duration
	logger   *zap.Logger

	queue *eventQueue
	done  chan struct{}

	// owned by the loop goroutine
	ctx           context.Context
	conv          *entities.Conversation
	state         entities.SessionState
	wantListening bool
	sourceGen     uint64
	speechGen     uint64
	requestGen    uint64
	chatCancel    context.CancelFunc

	// at most one Start runs at a time; the loop leaves the source alone
	// until it reports back
	starting    bool
	sourceLive  bool
	startCancel context.CancelFunc
	startDone   chan struct{}

	snapMu   sync.RWMutex
	snapshot entities.SessionState
	messages []entities.Message
}

// NewSessionController wires a controller. Source and output may be nil,
// in which case the matching intents fail as unsupported.
func NewSessionController(
	llm repositories.LargeLanguageModel,
	source repositories.TranscriptSource,
	output repositories.SpeechOutput,
	settings *SettingsStore,
	listener Listener,
	config SessionControllerConfig,
	logger *zap.Logger,
) *SessionController {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if settings == nil {
		settings = NewSettingsStore(entities.DefaultVoiceSettings())
	}

	return &SessionController{
		llm:      llm,
		source:   source,
		output:   output,
		settings: settings,
		listener: listener,
		timeout:  timeout,
		logger:   logger,
		queue:    newEventQueue(),
		done:     make(chan struct{}),
		conv:     entities.NewConversationWithClock(config.Clock),
	}
}

// Run processes events until ctx is done, then releases the source,
// the output and any chat request in flight
func (c *SessionController) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.shutdown()

	c.logger.Info("Session controller started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Session controller stopped")
			return ctx.Err()
		case <-c.queue.notify:
			for {
				ev, ok := c.queue.pop()
				if !ok {
					break
				}
				c.dispatch(ev)
			}
		}
	}
}

// State returns the last published state
func (c *SessionController) State() entities.SessionState {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

// Messages returns a copy of the conversation log
func (c *SessionController) Messages() []entities.Message {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	out := make([]entities.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Settings returns the current voice settings
func (c *SessionController) Settings() entities.VoiceSettings {
	return c.settings.Get()
}

func (c *SessionController) StartListening(ctx context.Context) error {
	return c.do(ctx, "start_listening", c.startListening)
}

func (c *SessionController) StopListening(ctx context.Context) error {
	return c.do(ctx, "stop_listening", c.stopListening)
}

// SendMessage appends a user message and requests the assistant reply.
// Blank content is ignored.
func (c *SessionController) SendMessage(ctx context.Context, content string) error {
	return c.do(ctx, "send_message", func() error { return c.sendMessage(content) })
}

// SendTranscript sends the current working transcript as a user message
func (c *SessionController) SendTranscript(ctx context.Context) error {
	return c.do(ctx, "send_transcript", func() error { return c.sendMessage(c.state.Transcript) })
}

// ToggleSpeaking cancels speech in progress; it does nothing otherwise
func (c *SessionController) ToggleSpeaking(ctx context.Context) error {
	return c.do(ctx, "toggle_speaking", c.toggleSpeaking)
}

// SpeakMessage replays a message from the log
func (c *SessionController) SpeakMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, "speak_message", func() error { return c.speakMessage(messageID) })
}

func (c *SessionController) UpdateSettings(ctx context.Context, settings entities.VoiceSettings) error {
	return c.do(ctx, "update_settings", func() error { return c.updateSettings(settings) })
}

// do queues an intent and waits for its outcome. An intent whose caller
// gave up before the loop reached it is dropped, never applied late.
func (c *SessionController) do(ctx context.Context, name string, apply func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reply := make(chan error, 1)
	claim := new(atomic.Int32)
	c.queue.push(intentEvent{name: name, apply: apply, reply: reply, claim: claim})

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrControllerStopped
		}
	case <-ctx.Done():
		if claim.CompareAndSwap(intentPending, intentAbandoned) {
			return ctx.Err()
		}
		// the loop is applying it, the outcome is the answer
		return <-reply
	}
}

func (c *SessionController) dispatch(ev event) {
	switch e := ev.(type) {
	case intentEvent:
		if !e.claim.CompareAndSwap(intentPending, intentClaimed) {
			c.logger.Debug("Dropping abandoned intent", zap.String("intent", e.name))
			return
		}
		err := e.apply()
		if err != nil {
			c.logger.Debug("Intent rejected", zap.String("intent", e.name), zap.Error(err))
		}
		c.publish()
		e.reply <- err
		return
	case sourceStartedEvent:
		c.onSourceStarted(e)
	case transcriptEvent:
		c.onTranscript(e)
	case sourceErrorEvent:
		c.onSourceError(e)
	case sourceEndEvent:
		c.onSourceEnd(e)
	case chatResultEvent:
		c.onChatResult(e)
	case speechStartEvent:
		c.onSpeechStart(e)
	case speechEndEvent:
		c.onSpeechEnd(e)
	case speechErrorEvent:
		c.onSpeechError(e)
	default:
		c.logger.Warn("Unknown controller event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
	c.publish()
}

func (c *SessionController) startListening() error {
	if c.state.IsSpeaking {
		return ErrSpeaking
	}
	if c.state.IsListening {
		return nil
	}
	c.state.Error = ""
	return c.beginListening()
}

// beginListening opens a new source generation. The session is listening
// from here on; the source starts off the loop and a failure to start
// shows up later as the state error.
func (c *SessionController) beginListening() error {
	if c.source == nil {
		err := domain.NewError(domain.KindUnsupported, "", nil)
		c.failListening(domain.Describe(err))
		return err
	}

	c.sourceGen++
	c.state.IsListening = true
	c.wantListening = true

	if c.starting {
		// the start in flight is stale now, its report relaunches
		c.startCancel()
		return nil
	}
	c.launchStart()
	return nil
}

// launchStart runs Start for the current generation on its own goroutine
func (c *SessionController) launchStart() {
	gen := c.sourceGen
	language := c.settings.Get().Language
	events := c.transcriptEvents(gen)

	if c.startCancel != nil {
		c.startCancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.startCancel = cancel
	c.startDone = done
	c.starting = true

	go func() {
		defer close(done)
		err := c.source.Start(ctx, language, events)
		c.queue.push(sourceStartedEvent{gen: gen, language: language, err: err})
	}()
}

func (c *SessionController) onSourceStarted(e sourceStartedEvent) {
	c.starting = false

	if e.gen != c.sourceGen {
		if e.err == nil {
			c.logger.Debug("Discarding superseded transcript source", zap.Uint64("generation", e.gen))
			if err := c.source.Abort(); err != nil {
				c.logger.Warn("Failed to abort transcript source", zap.Error(err))
			}
		}
		if c.state.IsListening {
			c.launchStart()
		}
		return
	}

	if e.err != nil {
		c.logger.Warn("Failed to start transcript source",
			zap.String("language", e.language),
			zap.Error(e.err))
		c.failListening(domain.Describe(e.err))
		return
	}

	c.sourceLive = true
	c.logger.Info("Listening started",
		zap.String("language", e.language),
		zap.Uint64("generation", e.gen))
}

func (c *SessionController) failListening(message string) {
	c.state.IsListening = false
	c.wantListening = false
	c.state.Error = message
}

func (c *SessionController) stopListening() error {
	if !c.state.IsListening {
		return nil
	}
	c.releaseSource()
	return nil
}

// releaseSource leaves the session idle. A start still in flight is
// superseded so whatever it opens is aborted when it reports.
func (c *SessionController) releaseSource() {
	c.state.IsListening = false
	c.wantListening = false

	if c.starting {
		c.sourceGen++
		c.startCancel()
	} else if c.sourceLive {
		c.sourceLive = false
		if err := c.source.Stop(); err != nil {
			c.logger.Warn("Failed to stop transcript source", zap.Error(err))
		}
	}
	c.logger.Info("Listening stopped", zap.Uint64("generation", c.sourceGen))
}

// restartListening replaces the running generation without leaving the
// listening state. The old one is aborted so nothing it buffered is sent
// for recognition.
func (c *SessionController) restartListening() error {
	if c.sourceLive {
		c.sourceLive = false
		if err := c.source.Abort(); err != nil {
			c.logger.Warn("Failed to abort transcript source", zap.Error(err))
		}
	}
	return c.beginListening()
}

func (c *SessionController) transcriptEvents(gen uint64) repositories.TranscriptEvents {
	return repositories.TranscriptEvents{
		OnTranscript: func(text string, isFinal bool) {
			c.queue.push(transcriptEvent{gen: gen, text: text, isFinal: isFinal})
		},
		OnError: func(err error) {
			c.queue.push(sourceErrorEvent{gen: gen, err: err})
		},
		OnEnd: func() {
			c.queue.push(sourceEndEvent{gen: gen})
		},
	}
}

func (c *SessionController) onTranscript(e transcriptEvent) {
	if e.gen != c.sourceGen {
		return
	}
	// a push-to-talk source reports its single result after it was stopped
	if !c.state.IsListening && c.source.Continuous() {
		return
	}
	c.state.Transcript = e.text
}

func (c *SessionController) onSourceError(e sourceErrorEvent) {
	if e.gen != c.sourceGen {
		return
	}
	c.state.Error = fmt.Sprintf("Speech recognition error: %s", domain.Describe(e.err))
	if c.state.IsListening {
		c.releaseSource()
	}
}

func (c *SessionController) onSourceEnd(e sourceEndEvent) {
	if e.gen != c.sourceGen || !c.state.IsListening {
		return
	}
	if c.wantListening && c.source.Continuous() {
		c.logger.Info("Recognition stream ended, restarting")
		c.restartListening()
		return
	}
	// the source already finished on its own
	c.sourceLive = false
	c.releaseSource()
}

func (c *SessionController) sendMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if c.state.IsLoading {
		return ErrBusy
	}
	if c.state.IsSpeaking {
		return ErrSpeaking
	}

	if _, err := c.appendMessage(entities.MessageRoleUser, content); err != nil {
		return err
	}
	c.state.Transcript = ""
	c.state.IsLoading = true
	c.state.Error = ""

	c.requestGen++
	c.requestReply(c.requestGen, c.conv.Projection())
	return nil
}

// requestReply runs the chat call off the loop and reports back as an event
func (c *SessionController) requestReply(gen uint64, history []entities.ChatTurn) {
	if c.llm == nil {
		c.queue.push(chatResultEvent{gen: gen, err: domain.NewError(domain.KindUnsupported, "Chat is not configured", nil)})
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	c.chatCancel = cancel

	go func() {
		defer cancel()
		reply, err := c.llm.Complete(ctx, history)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if _, ok := domain.KindOf(err); !ok {
				err = domain.NewError(domain.KindNetworkFailure, "Request timed out", err)
			}
		}
		c.queue.push(chatResultEvent{gen: gen, reply: reply, err: err})
	}()
}

func (c *SessionController) onChatResult(e chatResultEvent) {
	if e.gen != c.requestGen || !c.state.IsLoading {
		return
	}
	c.state.IsLoading = false
	c.chatCancel = nil

	if e.err != nil {
		c.logger.Warn("Chat request failed", zap.Error(e.err))
		c.state.Error = describeOr(e.err, sendFailedMessage)
		return
	}

	msg, err := c.appendMessage(entities.MessageRoleAssistant, e.reply)
	if err != nil {
		c.state.Error = sendFailedMessage
		return
	}

	if c.settings.Get().AutoPlay && !c.state.IsListening {
		c.speak(msg.Content)
	}
}

func (c *SessionController) appendMessage(role entities.MessageRole, content string) (entities.Message, error) {
	msg, err := c.conv.Append(role, content)
	if err != nil {
		return entities.Message{}, err
	}

	c.snapMu.Lock()
	c.messages = append(c.messages, msg)
	c.snapMu.Unlock()

	if c.listener != nil {
		c.listener.MessageAppended(msg)
	}
	return msg, nil
}

// speak hands text to the output. It never runs while listening.
func (c *SessionController) speak(text string) error {
	if c.state.IsListening {
		return ErrListening
	}
	if c.output == nil {
		err := domain.NewError(domain.KindUnsupported, "Speech synthesis is not supported", nil)
		c.state.Error = domain.Describe(err)
		return err
	}
	if c.state.IsSpeaking {
		c.output.Cancel()
	}

	c.speechGen++
	gen := c.speechGen
	err := c.output.Speak(c.ctx, text, c.settings.Get(), repositories.SpeechEvents{
		OnStart: func() { c.queue.push(speechStartEvent{gen: gen}) },
		OnEnd:   func() { c.queue.push(speechEndEvent{gen: gen}) },
		OnError: func(err error) { c.queue.push(speechErrorEvent{gen: gen, err: err}) },
	})
	if err != nil {
		c.logger.Warn("Failed to speak", zap.Error(err))
		c.state.IsSpeaking = false
		c.state.Error = describeOr(err, speakFailedMessage)
		return err
	}

	c.state.IsSpeaking = true
	return nil
}

func (c *SessionController) toggleSpeaking() error {
	if !c.state.IsSpeaking {
		return nil
	}
	c.output.Cancel()
	c.speechGen++
	c.state.IsSpeaking = false
	c.logger.Info("Speech cancelled")
	return nil
}

func (c *SessionController) speakMessage(messageID string) error {
	msg, ok := c.conv.Find(messageID)
	if !ok {
		return ErrMessageNotFound
	}
	return c.speak(msg.Content)
}

func (c *SessionController) onSpeechStart(e speechStartEvent) {
	if e.gen != c.speechGen {
		return
	}
	c.logger.Debug("Speech started", zap.Uint64("generation", e.gen))
}

func (c *SessionController) onSpeechEnd(e speechEndEvent) {
	if e.gen != c.speechGen || !c.state.IsSpeaking {
		return
	}
	c.state.IsSpeaking = false
}

func (c *SessionController) onSpeechError(e speechErrorEvent) {
	if e.gen != c.speechGen || !c.state.IsSpeaking {
		return
	}
	c.logger.Warn("Speech failed", zap.Error(e.err))
	c.state.IsSpeaking = false
	c.state.Error = describeOr(e.err, speakFailedMessage)
}

func (c *SessionController) updateSettings(settings entities.VoiceSettings) error {
	prev, err := c.settings.Set(settings)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	if prev.Language == settings.Language || !c.state.IsListening {
		return nil
	}

	// restart within this one event so observers never see listening drop
	c.logger.Info("Language changed while listening, restarting recognition",
		zap.String("from", prev.Language),
		zap.String("to", settings.Language))
	return c.restartListening()
}

func (c *SessionController) publish() {
	c.snapMu.Lock()
	changed := c.snapshot != c.state
	c.snapshot = c.state
	c.snapMu.Unlock()

	if changed && c.listener != nil {
		c.listener.StateChanged(c.state)
	}
}

func (c *SessionController) shutdown() {
	if c.chatCancel != nil {
		c.chatCancel()
	}
	if c.starting {
		// the start context is a child of the cancelled loop context
		<-c.startDone
	}
	if c.startCancel != nil {
		c.startCancel()
	}
	if c.source != nil && (c.sourceLive || c.starting) {
		c.source.Abort()
	}
	if c.output != nil && c.state.IsSpeaking {
		c.output.Cancel()
	}
}

// describeOr uses the domain message when there is one and fallback otherwise
func describeOr(err error, fallback string) string {
	if _, ok := domain.KindOf(err); ok {
		return domain.Describe(err)
	}
	return fallback
}
