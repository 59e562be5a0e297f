package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/ports"
)

// DefaultToneInterval is the period between tone repeats.
const DefaultToneInterval = 2 * time.Second

// ToneSpec describes the synthesized beep.
type ToneSpec struct {
	// Frequency is the fundamental in Hz.
	Frequency float64
	// Duration is the length of one beep.
	Duration time.Duration
	// SampleRate is in samples per second.
	SampleRate int
	// Decay is the exponential decay rate per second.
	Decay float64
	// Volume is the peak amplitude in [0, 1].
	Volume float64
}

// DefaultToneSpec is a short bright decaying beep.
func DefaultToneSpec() ToneSpec {
	return ToneSpec{
		Frequency:  880,
		Duration:   600 * time.Millisecond,
		SampleRate: 22050,
		Decay:      6,
		Volume:     0.8,
	}
}

// ToneSynthesizer plays a repeating fallback tone.
type ToneSynthesizer struct {
	device   ports.ToneDevice
	interval time.Duration
	wav      []byte
}

// NewToneSynthesizer renders spec once and returns a synthesizer that replays it.
func NewToneSynthesizer(device ports.ToneDevice, interval time.Duration, spec ToneSpec) *ToneSynthesizer {
	if interval <= 0 {
		interval = DefaultToneInterval
	}

	return &ToneSynthesizer{
		device:   device,
		interval: interval,
		wav:      RenderWAV(spec),
	}
}

// Start begins the tone loop.
func (s *ToneSynthesizer) Start(ctx context.Context, onFailed func(error)) *Handle {
	if s.device == nil || !s.device.IsSupported() {
		return failAsync(ctx, fmt.Errorf("tone playback: %w", alarm.ErrFeatureUnsupported), onFailed)
	}

	return startLoop(ctx, loopConfig{
		interval: s.interval,
		play: func(ctx context.Context) error {
			if err := s.device.Play(ctx, bytes.NewReader(s.wav)); err != nil {
				return fmt.Errorf("play tone: %w", err)
			}

			return nil
		},
		onFailed: onFailed,
	})
}

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
	wavFmtChunkSize  = 16
	wavFormatPCM     = 1
	// overtoneRatio adds a fifth above the fundamental, quieter.
	overtoneRatio = 1.5
	overtoneGain  = 0.35
)

// RenderWAV synthesizes spec as a 16-bit mono PCM WAV file.
func RenderWAV(spec ToneSpec) []byte {
	if spec.SampleRate <= 0 {
		spec = DefaultToneSpec()
	}

	samples := int(spec.Duration.Seconds() * float64(spec.SampleRate))
	dataSize := samples * 2

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	// RIFF header and fmt chunk; bytes.Buffer writes cannot fail.
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(wavHeaderSize-8+dataSize))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(wavFmtChunkSize))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint32(spec.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(spec.SampleRate*2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	norm := min(max(spec.Volume, 0), 1) / (1 + overtoneGain)

	for i := range samples {
		t := float64(i) / float64(spec.SampleRate)
		envelope := math.Exp(-spec.Decay * t)
		v := math.Sin(2*math.Pi*spec.Frequency*t) + overtoneGain*math.Sin(2*math.Pi*spec.Frequency*overtoneRatio*t)
		_ = binary.Write(buf, binary.LittleEndian, int16(norm*envelope*v*math.MaxInt16))
	}

	return buf.Bytes()
}
