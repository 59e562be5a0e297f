package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/ports"
	"github.com/oshokin/alarm-clock/internal/service/haptic"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/service/speech"
)

var (
	errAudioBusy = errors.New("audio device busy")
	errMicDenied = errors.New("microphone denied")
)

// fakeVoice plays for a moment and tracks how many plays are in flight.
// A play lasts hold (one millisecond when unset). With linger set, a
// cancelled play keeps the device that long before returning.
type fakeVoice struct {
	supported bool
	fail      bool
	hold      time.Duration
	linger    time.Duration
	calls     atomic.Int32
	active    atomic.Int32
}

func (v *fakeVoice) IsSupported() bool { return v.supported }

func (v *fakeVoice) Speak(ctx context.Context, _ string, _ string) error {
	v.calls.Add(1)

	if v.fail {
		return errAudioBusy
	}

	v.active.Add(1)
	defer v.active.Add(-1)

	hold := v.hold
	if hold == 0 {
		hold = time.Millisecond
	}

	select {
	case <-ctx.Done():
		time.Sleep(v.linger)
	case <-time.After(hold):
	}

	return nil
}

// fakeTone mirrors fakeVoice for the tone leaf.
// It counts plays that began while voice still held the device.
type fakeTone struct {
	supported bool
	fail      bool
	voice     *fakeVoice
	calls     atomic.Int32
	active    atomic.Int32
	overlaps  atomic.Int32
}

func (f *fakeTone) IsSupported() bool { return f.supported }

func (f *fakeTone) Play(ctx context.Context, wav io.Reader) error {
	f.calls.Add(1)

	if f.voice != nil && f.voice.active.Load() > 0 {
		f.overlaps.Add(1)
	}

	if f.fail {
		return errAudioBusy
	}

	f.active.Add(1)
	defer f.active.Add(-1)

	_, _ = io.Copy(io.Discard, wav)

	select {
	case <-ctx.Done():
	case <-time.After(time.Millisecond):
	}

	return nil
}

// fakeMotor counts pulses.
type fakeMotor struct {
	supported bool
	pulses    atomic.Int32
}

func (m *fakeMotor) IsSupported() bool { return m.supported }

func (m *fakeMotor) Pulse(context.Context, time.Duration) error {
	m.pulses.Add(1)

	return nil
}

// liveStream is a listening cycle the test can push transcripts into.
type liveStream struct {
	mu      sync.Mutex
	closed  bool
	results chan ports.Transcript
}

func (s *liveStream) Results() <-chan ports.Transcript { return s.results }
func (s *liveStream) Err() error                       { return nil }

func (s *liveStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.results)
	}

	return nil
}

func (s *liveStream) push(t ports.Transcript) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.results <- t:
		return true
	default:
		return false
	}
}

// fakeSpeech opens live streams, or fails every Listen.
type fakeSpeech struct {
	supported bool
	fail      bool
	calls     atomic.Int32

	mu      sync.Mutex
	current *liveStream
}

func (p *fakeSpeech) IsSupported() bool { return p.supported }

func (p *fakeSpeech) Listen(ctx context.Context, _ string) (ports.RecognitionStream, error) {
	p.calls.Add(1)

	if p.fail {
		return nil, errMicDenied
	}

	s := &liveStream{results: make(chan ports.Transcript, 8)}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	return s, nil
}

// say pushes a transcript into the current cycle.
func (p *fakeSpeech) say(text string, final bool) bool {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()

	if s == nil {
		return false
	}

	return s.push(ports.Transcript{Text: text, IsFinal: final})
}

// recordingSink stores every host event.
type recordingSink struct {
	mu          sync.Mutex
	states      []alarm.State
	transcripts []string
	ticks       int
	notices     []alarm.CapabilityNotice
	terminals   []alarm.Outcome
}

func (s *recordingSink) OnStateChanged(state alarm.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *recordingSink) OnTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, text)
}

func (s *recordingSink) OnTick(time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
}

func (s *recordingSink) OnCapability(n alarm.CapabilityNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *recordingSink) OnTerminal(o alarm.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminals = append(s.terminals, o)
}

func (s *recordingSink) stateLog() []alarm.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]alarm.State(nil), s.states...)
}

func (s *recordingSink) transcriptLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.transcripts...)
}

func (s *recordingSink) tickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ticks
}

func (s *recordingSink) terminalLog() []alarm.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]alarm.Outcome(nil), s.terminals...)
}

func (s *recordingSink) notice(c alarm.Capability) (alarm.CapabilityNotice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notices {
		if n.Capability == c {
			return n, true
		}
	}

	return alarm.CapabilityNotice{}, false
}

// rig bundles a controller with its fakes.
type rig struct {
	voice       *fakeVoice
	tone        *fakeTone
	motor       *fakeMotor
	speech      *fakeSpeech
	sink        *recordingSink
	cfg         Config
	maxFailures int
}

func newRig() *rig {
	return &rig{
		voice:  &fakeVoice{supported: true},
		tone:   &fakeTone{supported: true},
		motor:  &fakeMotor{supported: true},
		speech: &fakeSpeech{supported: true},
		sink:   new(recordingSink),
		cfg: Config{
			VoiceEnabled:      true,
			RecognitionLocale: "en-US",
			HapticEnabled:     true,
			TickInterval:      2 * time.Millisecond,
		},
		maxFailures: 3,
	}
}

func (r *rig) build() *Controller {
	leaves := Leaves{
		Voice:      playback.NewVoiceMessagePlayer(r.voice, 2*time.Millisecond, playback.LoopRepeat),
		Tone:       playback.NewToneSynthesizer(r.tone, 2*time.Millisecond, playback.DefaultToneSpec()),
		Recognizer: speech.NewRecognizer(r.speech, speech.Config{Backoff: time.Millisecond, MaxFailures: r.maxFailures}),
		Haptic:     haptic.NewPulser(r.motor, 2*time.Millisecond, time.Millisecond),
	}

	return New(Params{AlarmID: "alarm-1", Label: "Work", VoiceMood: "gentle", SnoozeCount: 1}, r.cfg, leaves, r.sink)
}

func (s *recordingSink) noticeEventually(t *testing.T, c alarm.Capability) (alarm.CapabilityNotice, bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n, ok := s.notice(c); ok {
			return n, true
		}

		time.Sleep(time.Millisecond)
	}

	return alarm.CapabilityNotice{}, false
}
