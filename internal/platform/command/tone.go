package command

import (
	"context"
	"io"

	"github.com/oshokin/alarm-clock/internal/platform/exclusive"
)

// ToneDevice feeds WAV data to a player program on stdin.
type ToneDevice struct {
	player  program
	speaker *exclusive.Claim
}

// NewToneDevice returns a tone device. The player must read WAV from stdin,
// e.g. "aplay -q -". speaker may be nil.
func NewToneDevice(playerCommand string, speaker *exclusive.Claim) *ToneDevice {
	return &ToneDevice{
		player:  parseProgram(playerCommand),
		speaker: speaker,
	}
}

// IsSupported reports whether the player is usable.
func (d *ToneDevice) IsSupported() bool {
	return d.player.supported()
}

// Play plays wav and returns when the player exits.
func (d *ToneDevice) Play(ctx context.Context, wav io.Reader) error {
	return d.player.run(ctx, d.speaker, wav)
}
