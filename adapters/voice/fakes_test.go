package voice

import (
	"context"
	"io"
	"sync"

	"github.com/satriahrh/voicechat/domain/repositories"
)

type fakeAudioStream struct {
	frames    chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeAudioStream() *fakeAudioStream {
	return &fakeAudioStream{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeAudioStream) Frames() <-chan []byte { return f.frames }

func (f *fakeAudioStream) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		close(f.frames)
	})
	return nil
}

type fakeMic struct {
	mu      sync.Mutex
	err     error
	streams []*fakeAudioStream
	configs []repositories.AudioConfig
}

func (m *fakeMic) Open(ctx context.Context, format repositories.AudioConfig) (repositories.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := newFakeAudioStream()
	m.streams = append(m.streams, s)
	m.configs = append(m.configs, format)
	return s, nil
}

func (m *fakeMic) last() *fakeAudioStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[len(m.streams)-1]
}

type fakeRecognition struct {
	results    chan repositories.RecognitionResult
	failure    chan error
	sendClosed chan struct{}
	sendOnce   sync.Once
	closeOnce  sync.Once
	mu         sync.Mutex
	audio      [][]byte
}

func (f *fakeRecognition) Stream(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, data)
	return nil
}

func (f *fakeRecognition) Recv() (repositories.RecognitionResult, error) {
	select {
	case r, ok := <-f.results:
		if !ok {
			return repositories.RecognitionResult{}, io.EOF
		}
		return r, nil
	case err := <-f.failure:
		return repositories.RecognitionResult{}, err
	}
}

func (f *fakeRecognition) CloseSend() error {
	f.sendOnce.Do(func() { close(f.sendClosed) })
	return nil
}

func (f *fakeRecognition) Close() error {
	f.closeOnce.Do(func() { close(f.results) })
	return nil
}

type fakeStreamingSTT struct {
	mu      sync.Mutex
	streams []*fakeRecognition
}

func (f *fakeStreamingSTT) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeRecognition{
		results:    make(chan repositories.RecognitionResult, 16),
		failure:    make(chan error, 1),
		sendClosed: make(chan struct{}),
	}
	f.streams = append(f.streams, r)
	return r, nil
}

func (f *fakeStreamingSTT) last() *fakeRecognition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

type fakeSTT struct {
	text string
	err  error

	mu    sync.Mutex
	got   []byte
	calls int
}

func (f *fakeSTT) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	f.mu.Lock()
	f.got = append([]byte(nil), audioData...)
	f.calls++
	f.mu.Unlock()
	return f.text, f.err
}

type fakeEngine struct {
	voices    []repositories.Voice
	err       error
	mu        sync.Mutex
	spoken    []repositories.Utterance
	cancelled int
}

func (e *fakeEngine) Voices() []repositories.Voice { return e.voices }

func (e *fakeEngine) Speak(u repositories.Utterance, events repositories.SpeechEvents) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.spoken = append(e.spoken, u)
	return nil
}

func (e *fakeEngine) Cancel() {
	e.mu.Lock()
	e.cancelled++
	e.mu.Unlock()
}

type fakeTTS struct {
	clip   *repositories.AudioClip
	err    error
	block  bool
	called chan repositories.VoiceConfig
}

func (f *fakeTTS) ConvertTextToSpeech(ctx context.Context, text string, voice repositories.VoiceConfig) (*repositories.AudioClip, error) {
	if f.called != nil {
		f.called <- voice
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.clip, f.err
}

type fakePlayer struct {
	err     error
	block   bool
	mu      sync.Mutex
	played  []repositories.AudioClip
	stopped int
}

func (p *fakePlayer) Play(ctx context.Context, clip repositories.AudioClip) error {
	p.mu.Lock()
	p.played = append(p.played, clip)
	p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
}
