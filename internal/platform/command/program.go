package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/platform/exclusive"
)

// waitDelay bounds how long a killed program may keep its pipes open.
const waitDelay = time.Second

// program is a parsed command line.
type program struct {
	argv []string
}

func parseProgram(line string) program {
	return program{argv: strings.Fields(line)}
}

func (p program) String() string {
	return strings.Join(p.argv, " ")
}

// supported reports whether the program is configured and found on PATH.
func (p program) supported() bool {
	if len(p.argv) == 0 {
		return false
	}

	_, err := exec.LookPath(p.argv[0])

	return err == nil
}

func (p program) command(ctx context.Context, extra ...string) *exec.Cmd {
	args := make([]string, 0, len(p.argv)-1+len(extra))
	args = append(args, p.argv[1:]...)
	args = append(args, extra...)

	//nolint:gosec // The command line comes from the operator's settings file.
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	cmd.WaitDelay = waitDelay

	return cmd
}

// run executes the program to completion inside one run of claim.
func (p program) run(ctx context.Context, claim *exclusive.Claim, stdin io.Reader, extra ...string) (err error) {
	if len(p.argv) == 0 {
		return fmt.Errorf("%w: no command configured", alarm.ErrFeatureUnsupported)
	}

	if err = claim.Acquire(); err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, claim.Release())
	}()

	var stderr bytes.Buffer

	cmd := p.command(ctx, extra...)
	cmd.Stdin = stdin
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %s: %w%s", alarm.ErrDeviceUnavailable, p.argv[0], err, stderrSuffix(&stderr))
	}

	return nil
}

func stderrSuffix(buf *bytes.Buffer) string {
	msg := strings.TrimSpace(buf.String())
	if msg == "" {
		return ""
	}

	return ": " + msg
}
