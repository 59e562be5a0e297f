package command

import (
	"context"
	"strconv"
	"time"
)

// HapticDevice runs a vibration helper with the pulse length in milliseconds
// as its last argument.
type HapticDevice struct {
	motor program
}

// NewHapticDevice returns a haptic device.
func NewHapticDevice(hapticCommand string) *HapticDevice {
	return &HapticDevice{motor: parseProgram(hapticCommand)}
}

// IsSupported reports whether the helper is usable.
func (d *HapticDevice) IsSupported() bool {
	return d.motor.supported()
}

// Pulse vibrates once.
func (d *HapticDevice) Pulse(ctx context.Context, duration time.Duration) error {
	return d.motor.run(ctx, nil, nil, strconv.FormatInt(duration.Milliseconds(), 10))
}
