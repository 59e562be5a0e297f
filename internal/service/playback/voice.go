package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/ports"
)

// LoopPolicy selects how often the voice message is spoken.
type LoopPolicy string

const (
	// LoopRepeat speaks the message again every interval.
	LoopRepeat LoopPolicy = "repeat"
	// LoopOnce speaks the message a single time per ring.
	LoopOnce LoopPolicy = "once"
)

// DefaultVoiceInterval is the period between voice message repeats.
const DefaultVoiceInterval = 30 * time.Second

// VoiceMessagePlayer speaks the wake message on a loop.
type VoiceMessagePlayer struct {
	device   ports.VoiceDevice
	interval time.Duration
	policy   LoopPolicy
}

// NewVoiceMessagePlayer returns a player; unknown policies fall back to LoopRepeat.
func NewVoiceMessagePlayer(device ports.VoiceDevice, interval time.Duration, policy LoopPolicy) *VoiceMessagePlayer {
	if interval <= 0 {
		interval = DefaultVoiceInterval
	}

	if policy != LoopOnce {
		policy = LoopRepeat
	}

	return &VoiceMessagePlayer{
		device:   device,
		interval: interval,
		policy:   policy,
	}
}

// Start begins speaking text in the given mood.
// Failures, including an unsupported device, arrive through onFailed.
func (p *VoiceMessagePlayer) Start(ctx context.Context, mood, text string, onFailed func(error)) *Handle {
	if p.device == nil || !p.device.IsSupported() {
		return failAsync(ctx, fmt.Errorf("voice playback: %w", alarm.ErrFeatureUnsupported), onFailed)
	}

	return startLoop(ctx, loopConfig{
		interval: p.interval,
		once:     p.policy == LoopOnce,
		play: func(ctx context.Context) error {
			if err := p.device.Speak(ctx, mood, text); err != nil {
				return fmt.Errorf("speak wake message: %w", err)
			}

			return nil
		},
		onFailed: onFailed,
	})
}
