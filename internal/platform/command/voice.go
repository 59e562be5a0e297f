package command

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oshokin/alarm-clock/internal/platform/exclusive"
)

// ClipExtension is the file extension of pre-rendered voice clips.
const ClipExtension = ".wav"

// VoiceDevice speaks wake messages through a TTS program, preferring a
// pre-rendered clip for the mood when one is installed.
type VoiceDevice struct {
	speech   program
	player   program
	clipsDir string
	speaker  *exclusive.Claim
}

// NewVoiceDevice returns a voice device. speaker may be nil.
func NewVoiceDevice(speechCommand, playerCommand, clipsDir string, speaker *exclusive.Claim) *VoiceDevice {
	return &VoiceDevice{
		speech:   parseProgram(speechCommand),
		player:   parseProgram(playerCommand),
		clipsDir: clipsDir,
		speaker:  speaker,
	}
}

// IsSupported reports whether either the TTS program or a clip player is usable.
func (d *VoiceDevice) IsSupported() bool {
	if d.speech.supported() {
		return true
	}

	if d.clipsDir == "" || !d.player.supported() {
		return false
	}

	clips, err := filepath.Glob(filepath.Join(d.clipsDir, "*"+ClipExtension))

	return err == nil && len(clips) > 0
}

// Speak plays the clip for mood if present, otherwise synthesizes text.
func (d *VoiceDevice) Speak(ctx context.Context, mood string, text string) error {
	if clip, ok := d.clip(mood); ok {
		return d.player.run(ctx, d.speaker, nil, clip)
	}

	return d.speech.run(ctx, d.speaker, nil, text)
}

func (d *VoiceDevice) clip(mood string) (string, bool) {
	if d.clipsDir == "" || mood == "" || !d.player.supported() {
		return "", false
	}

	path := filepath.Join(d.clipsDir, filepath.Base(mood)+ClipExtension)

	if _, err := os.Stat(path); err != nil {
		return "", false
	}

	return path, true
}
