package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/ports"
)

func waitTerminated(t *testing.T, c *Controller) {
	t.Helper()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
}

// TestController_ButtonDismiss walks Idle -> Ringing -> Dismissing -> Terminated.
func TestController_ButtonDismiss(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()

	require.Equal(t, alarm.StateIdle, c.State())
	require.False(t, c.Signal(alarm.SignalManualButton), "idle sessions accept no resolution")

	require.NoError(t, c.Start(context.Background()))
	require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
	require.Equal(t, alarm.StateRinging, c.State())
	require.Nil(t, c.Session().Resolution)

	require.Eventually(t, func() bool {
		return r.voice.calls.Load() > 0 && r.motor.pulses.Load() > 0 && r.speech.calls.Load() > 0
	}, time.Second, time.Millisecond)

	require.True(t, c.Signal(alarm.SignalManualButton))
	waitTerminated(t, c)

	require.Equal(t, []alarm.State{alarm.StateRinging, alarm.StateDismissing, alarm.StateTerminated}, r.sink.stateLog())

	terminals := r.sink.terminalLog()
	require.Len(t, terminals, 1)
	require.Equal(t, "alarm-1", terminals[0].AlarmID)
	require.Equal(t, alarm.MethodButton, terminals[0].Method)
	require.False(t, terminals[0].Snooze)

	s := c.Session()
	require.Equal(t, alarm.StateTerminated, s.State)
	require.NotNil(t, s.Resolution)
	require.Equal(t, alarm.ActionDismiss, s.Resolution.Action)
	require.Equal(t, 1, s.SnoozeCount)
	require.Equal(t, alarm.AudioSourceNone, c.AudioSource())

	outcome, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, terminals[0], outcome)

	// Every leaf winds down.
	require.Eventually(t, func() bool { return r.voice.active.Load() == 0 }, time.Second, time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	pulses, listens := r.motor.pulses.Load(), r.speech.calls.Load()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, pulses, r.motor.pulses.Load())
	require.Equal(t, listens, r.speech.calls.Load())
}

// TestController_SnoozeButton reports a snoozing outcome.
func TestController_SnoozeButton(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()

	require.NoError(t, c.Start(context.Background()))
	require.True(t, c.Signal(alarm.SignalSnoozeButton))
	waitTerminated(t, c)

	require.Equal(t, []alarm.State{alarm.StateRinging, alarm.StateSnoozing, alarm.StateTerminated}, r.sink.stateLog())
	require.True(t, r.sink.terminalLog()[0].Snooze)
}

// TestController_ConcurrentResolutions fires every channel at once and expects one winner.
func TestController_ConcurrentResolutions(t *testing.T) {
	t.Parallel()

	for range 30 {
		r := newRig()
		c := r.build()
		require.NoError(t, c.Start(context.Background()))

		require.Eventually(t, func() bool { return r.speech.say("", false) }, time.Second, time.Millisecond)

		var (
			wins  atomic.Int32
			wg    sync.WaitGroup
			start = make(chan struct{})
		)

		signals := []alarm.Signal{
			alarm.SignalManualButton,
			alarm.SignalSnoozeButton,
			alarm.SignalShakeGesture,
			alarm.SignalManualButton,
			alarm.SignalShakeGesture,
		}

		for _, sig := range signals {
			wg.Add(1)

			go func() {
				defer wg.Done()
				<-start

				if c.Signal(sig) {
					wins.Add(1)
				}
			}()
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start
			r.speech.say("stop", true)
		}()

		close(start)
		wg.Wait()
		waitTerminated(t, c)

		require.LessOrEqual(t, wins.Load(), int32(1))
		require.Len(t, r.sink.terminalLog(), 1)

		states := r.sink.stateLog()
		require.Len(t, states, 3)
		require.Equal(t, alarm.StateTerminated, states[2])

		// The recorded resolution matches the emitted outcome.
		s := c.Session()
		require.Equal(t, s.Resolution.Method, r.sink.terminalLog()[0].Method)
	}
}

// TestController_VoiceDismiss resolves from a spoken "please stop now".
func TestController_VoiceDismiss(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return r.speech.say("please stop", false) }, time.Second, time.Millisecond)
	require.True(t, r.speech.say("please stop now", true))

	waitTerminated(t, c)

	outcome, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, alarm.MethodVoice, outcome.Method)
	require.False(t, outcome.Snooze)
	require.Equal(t, []string{"please stop", "please stop now"}, r.sink.transcriptLog())
}

// TestController_VoiceSnooze resolves from "five more minutes please".
func TestController_VoiceSnooze(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return r.speech.say("five more minutes please", true) }, time.Second, time.Millisecond)
	waitTerminated(t, c)

	outcome, _ := c.Outcome()
	require.Equal(t, alarm.MethodVoice, outcome.Method)
	require.True(t, outcome.Snooze)
	require.Equal(t, []alarm.State{alarm.StateRinging, alarm.StateSnoozing, alarm.StateTerminated}, r.sink.stateLog())
}

// TestController_UnrecognizedTranscriptKeepsRinging surfaces the text and changes nothing.
func TestController_UnrecognizedTranscriptKeepsRinging(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return r.speech.say("good morning", true) }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(r.sink.transcriptLog()) == 1 }, time.Second, time.Millisecond)

	require.Equal(t, alarm.StateRinging, c.State())
	require.Equal(t, []alarm.State{alarm.StateRinging}, r.sink.stateLog())

	c.Signal(alarm.SignalCancel)
	waitTerminated(t, c)
}

// TestController_VoiceFailureFallsBackToTone starts the tone in the same reaction.
func TestController_VoiceFailureFallsBackToTone(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.voice.fail = true
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return r.tone.calls.Load() > 0 }, time.Second, time.Millisecond)
	require.Equal(t, alarm.AudioSourceTone, c.AudioSource())
	require.Equal(t, alarm.StateRinging, c.State())
	require.Equal(t, []alarm.State{alarm.StateRinging}, r.sink.stateLog())

	require.Eventually(t, func() bool {
		_, ok := r.sink.notice(alarm.CapabilityVoice)
		return ok
	}, time.Second, time.Millisecond)

	n, _ := r.sink.notice(alarm.CapabilityVoice)
	require.False(t, n.Available)
	require.ErrorIs(t, n.Reason, errAudioBusy)
	require.Equal(t, alarm.KindDeviceUnavailable, n.Kind)
	require.EqualValues(t, 1, r.voice.calls.Load())

	require.True(t, c.Signal(alarm.SignalShakeGesture))
	waitTerminated(t, c)
	require.Eventually(t, func() bool { return r.tone.active.Load() == 0 }, time.Second, time.Millisecond)
}

// TestController_VoiceDisabledUsesTone never touches the voice device.
func TestController_VoiceDisabledUsesTone(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.cfg.VoiceEnabled = false
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Equal(t, alarm.AudioSourceTone, c.AudioSource())
	require.Eventually(t, func() bool { return r.tone.calls.Load() > 0 }, time.Second, time.Millisecond)
	require.Zero(t, r.voice.calls.Load())

	n, ok := r.sink.noticeEventually(t, alarm.CapabilityVoice)
	require.True(t, ok)
	require.Equal(t, alarm.KindFeatureDisabled, n.Kind)

	_, err := c.ToggleAudioSource()
	require.ErrorIs(t, err, alarm.ErrFeatureDisabled)
	require.Equal(t, alarm.AudioSourceTone, c.AudioSource())

	c.Signal(alarm.SignalCancel)
	waitTerminated(t, c)
}

// TestController_RecognitionUnsupported keeps buttons working without any restart loop.
func TestController_RecognitionUnsupported(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.speech.supported = false
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	n, ok := r.sink.noticeEventually(t, alarm.CapabilityRecognition)
	require.True(t, ok)
	require.Equal(t, alarm.KindFeatureUnsupported, n.Kind)

	time.Sleep(10 * time.Millisecond)
	require.Zero(t, r.speech.calls.Load())

	require.True(t, c.Signal(alarm.SignalManualButton))
	waitTerminated(t, c)
	require.Contains(t, r.sink.stateLog(), alarm.StateDismissing)
}

// TestController_ZombieTranscriptAfterRestartExhausted ignores late recognizer output.
func TestController_ZombieTranscriptAfterRestartExhausted(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.speech.fail = true
	r.maxFailures = 2
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	n, ok := r.sink.noticeEventually(t, alarm.CapabilityRecognition)
	require.True(t, ok)
	require.Equal(t, alarm.KindRestartExhausted, n.Kind)
	require.EqualValues(t, 2, r.speech.calls.Load())

	// A late event from the abandoned recognition run.
	(&recognitionListener{c: c}).OnTranscript(ports.Transcript{Text: "stop", IsFinal: true})

	require.Equal(t, alarm.StateRinging, c.State())
	require.Empty(t, r.sink.transcriptLog())

	require.True(t, c.Signal(alarm.SignalManualButton))
	waitTerminated(t, c)
}

// TestController_EventsAfterTerminatedAreNoops checks the absorbing state.
func TestController_EventsAfterTerminatedAreNoops(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.True(t, c.Signal(alarm.SignalShakeGesture))
	waitTerminated(t, c)

	states := r.sink.stateLog()

	listener := &recognitionListener{c: c}
	listener.OnTranscript(ports.Transcript{Text: "snooze", IsFinal: true})
	listener.OnEnded()
	listener.OnUnavailable(errMicDenied)
	c.onAudioFailed(1, alarm.AudioSourceVoice, errAudioBusy)

	require.False(t, c.Signal(alarm.SignalManualButton))
	require.False(t, c.Signal(alarm.SignalSnoozeButton))
	require.False(t, c.Signal(alarm.SignalCancel))

	_, err := c.ToggleAudioSource()
	require.ErrorIs(t, err, ErrNotRinging)
	require.ErrorIs(t, c.Start(context.Background()), alarm.ErrSessionTerminated)

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, states, r.sink.stateLog())
	require.Len(t, r.sink.terminalLog(), 1)
	require.Empty(t, r.sink.transcriptLog())
	require.Equal(t, alarm.MethodShake, c.Session().Resolution.Method)
}

// TestController_CancelFromRinging goes straight to Terminated.
func TestController_CancelFromRinging(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))

	cancel()
	waitTerminated(t, c)

	require.Equal(t, []alarm.State{alarm.StateRinging, alarm.StateTerminated}, r.sink.stateLog())

	outcome, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, alarm.MethodCancel, outcome.Method)
	require.False(t, outcome.Snooze)
	require.NotNil(t, c.Session().Resolution)
}

// TestController_CancelBeforeStart terminates an idle session.
func TestController_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()

	require.True(t, c.Signal(alarm.SignalCancel))
	waitTerminated(t, c)

	require.Equal(t, []alarm.State{alarm.StateTerminated}, r.sink.stateLog())
	require.ErrorIs(t, c.Start(context.Background()), alarm.ErrSessionTerminated)
	require.Zero(t, r.voice.calls.Load())
}

// TestController_ToggleAudioSource switches voice and tone, one at a time.
func TestController_ToggleAudioSource(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, alarm.AudioSourceVoice, c.AudioSource())

	src, err := c.ToggleAudioSource()
	require.NoError(t, err)
	require.Equal(t, alarm.AudioSourceTone, src)
	require.Eventually(t, func() bool { return r.tone.calls.Load() > 0 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return r.voice.active.Load() == 0 }, time.Second, time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	voiceCalls := r.voice.calls.Load()

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, voiceCalls, r.voice.calls.Load())

	src, err = c.ToggleAudioSource()
	require.NoError(t, err)
	require.Equal(t, alarm.AudioSourceVoice, src)
	require.Eventually(t, func() bool { return r.voice.calls.Load() > voiceCalls }, time.Second, time.Millisecond)

	c.Signal(alarm.SignalManualButton)
	waitTerminated(t, c)
}

// TestController_ToggleWaitsForVoiceToStop keeps the tone silent until a
// slow voice device has released the speaker.
func TestController_ToggleWaitsForVoiceToStop(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.voice.hold = time.Hour
	r.voice.linger = 50 * time.Millisecond
	r.tone.voice = r.voice
	c := r.build()
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return r.voice.active.Load() == 1 }, time.Second, time.Millisecond)

	src, err := c.ToggleAudioSource()
	require.NoError(t, err)
	require.Equal(t, alarm.AudioSourceTone, src)

	time.Sleep(10 * time.Millisecond)
	require.Zero(t, r.tone.calls.Load())
	require.Equal(t, int32(1), r.voice.active.Load())

	require.Eventually(t, func() bool { return r.tone.calls.Load() > 0 }, time.Second, time.Millisecond)
	require.Zero(t, r.tone.overlaps.Load())
	require.Equal(t, alarm.AudioSourceTone, c.AudioSource())

	c.Signal(alarm.SignalManualButton)
	waitTerminated(t, c)
}

// TestController_ToggleBackBeforeSwitch drops the pending start when the
// listener toggles again before the old source has stopped.
func TestController_ToggleBackBeforeSwitch(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.voice.hold = time.Hour
	r.voice.linger = 30 * time.Millisecond
	r.tone.voice = r.voice
	c := r.build()
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return r.voice.active.Load() == 1 }, time.Second, time.Millisecond)

	_, err := c.ToggleAudioSource()
	require.NoError(t, err)

	src, err := c.ToggleAudioSource()
	require.NoError(t, err)
	require.Equal(t, alarm.AudioSourceVoice, src)

	require.Eventually(t, func() bool { return r.voice.calls.Load() >= 2 }, time.Second, time.Millisecond)
	require.Zero(t, r.tone.calls.Load())
	require.Equal(t, alarm.AudioSourceVoice, c.AudioSource())

	c.Signal(alarm.SignalManualButton)
	waitTerminated(t, c)
}

// TestController_TicksOnlyWhileRinging checks countdown ticks stop with the session.
func TestController_TicksOnlyWhileRinging(t *testing.T) {
	t.Parallel()

	r := newRig()
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return r.sink.tickCount() >= 3 }, time.Second, time.Millisecond)

	c.Signal(alarm.SignalManualButton)
	waitTerminated(t, c)

	ticks := r.sink.tickCount()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, ticks, r.sink.tickCount())
}

// TestController_HapticsSurviveEverythingElse keeps pulsing with no audio and no recognition.
func TestController_HapticsSurviveEverythingElse(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.voice.supported = false
	r.tone.fail = true
	r.speech.supported = false
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return r.motor.pulses.Load() >= 3 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.AudioSource() == alarm.AudioSourceNone }, time.Second, time.Millisecond)

	_, ok := r.sink.noticeEventually(t, alarm.CapabilityTone)
	require.True(t, ok)

	require.True(t, c.Signal(alarm.SignalManualButton))
	waitTerminated(t, c)
}

// TestController_HapticDisabled reports the flag and never pulses.
func TestController_HapticDisabled(t *testing.T) {
	t.Parallel()

	r := newRig()
	r.cfg.HapticEnabled = false
	c := r.build()
	require.NoError(t, c.Start(context.Background()))

	n, ok := r.sink.noticeEventually(t, alarm.CapabilityHaptic)
	require.True(t, ok)
	require.Equal(t, alarm.KindFeatureDisabled, n.Kind)

	c.Signal(alarm.SignalCancel)
	waitTerminated(t, c)
	require.Zero(t, r.motor.pulses.Load())
}

// TestController_NilLeavesAndSink still produces a resolvable session.
func TestController_NilLeavesAndSink(t *testing.T) {
	t.Parallel()

	c := New(Params{AlarmID: "bare"}, Config{VoiceEnabled: true, HapticEnabled: true}, Leaves{}, nil)
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, alarm.AudioSourceNone, c.AudioSource())

	require.True(t, c.Signal(alarm.SignalManualButton))
	waitTerminated(t, c)

	outcome, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, "bare", outcome.AlarmID)
}
