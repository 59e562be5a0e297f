package command

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/platform/exclusive"
	"github.com/oshokin/alarm-clock/internal/ports"
)

// maxResultLine is the longest result line the recognizer program may write.
const maxResultLine = 1 << 20

// Recognizer runs a streaming speech-to-text program once per listening cycle.
//
// The program receives the locale as its last argument and writes one result
// per line to stdout, either as JSON {"text": "...", "final": true} or as
// plain text, which counts as a final result. A clean exit ends the cycle.
type Recognizer struct {
	engine     program
	microphone *exclusive.Claim
}

// NewRecognizer returns a recognizer. microphone may be nil.
func NewRecognizer(recognizerCommand string, microphone *exclusive.Claim) *Recognizer {
	return &Recognizer{
		engine:     parseProgram(recognizerCommand),
		microphone: microphone,
	}
}

// IsSupported reports whether the recognizer program is usable.
func (r *Recognizer) IsSupported() bool {
	return r.engine.supported()
}

// Listen starts one cycle.
func (r *Recognizer) Listen(ctx context.Context, locale string) (ports.RecognitionStream, error) {
	if !r.engine.supported() {
		return nil, fmt.Errorf("%w: recognizer %q not found", alarm.ErrFeatureUnsupported, r.engine)
	}

	if err := r.microphone.Acquire(); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	s := &processStream{
		results:    make(chan ports.Transcript),
		cancel:     cancel,
		microphone: r.microphone,
	}

	cmd := r.engine.command(streamCtx, locale)
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}

	if err != nil {
		cancel()

		return nil, multierr.Append(
			fmt.Errorf("start recognizer: %w", err),
			r.microphone.Release(),
		)
	}

	go func() {
		defer close(s.results)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxResultLine)

		for scanner.Scan() {
			t, ok := parseTranscript(scanner.Bytes())
			if !ok {
				continue
			}

			select {
			case s.results <- t:
			case <-streamCtx.Done():
			}
		}

		closed := streamCtx.Err() != nil

		// Nobody reads stdout after a scan error, so the program must not outlive it.
		scanErr := scanner.Err()
		if scanErr != nil {
			s.cancel()
		}

		waitErr := cmd.Wait()

		switch {
		case closed:
			waitErr = nil
		case scanErr != nil:
			waitErr = fmt.Errorf("%w: read recognizer output: %w", alarm.ErrTransientRecognition, scanErr)
		case waitErr != nil:
			waitErr = fmt.Errorf("recognizer exited: %w%s", waitErr, stderrSuffix(&s.stderr))
		}

		s.setErr(multierr.Append(waitErr, s.microphone.Release()))
	}()

	return s, nil
}

type processStream struct {
	results    chan ports.Transcript
	cancel     context.CancelFunc
	microphone *exclusive.Claim
	stderr     bytes.Buffer

	mu  sync.Mutex
	err error
}

func (s *processStream) Results() <-chan ports.Transcript {
	return s.results
}

func (s *processStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Close stops the program; the results channel closes once it has exited.
func (s *processStream) Close() error {
	s.cancel()

	return nil
}

func (s *processStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type transcriptLine struct {
	Text  string `json:"text"`
	Final *bool  `json:"final"`
}

// parseTranscript decodes one stdout line. Blank lines are skipped.
func parseTranscript(line []byte) (ports.Transcript, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return ports.Transcript{}, false
	}

	if trimmed[0] == '{' {
		var decoded transcriptLine
		if err := json.Unmarshal(trimmed, &decoded); err == nil {
			isFinal := decoded.Final == nil || *decoded.Final

			return ports.Transcript{Text: strings.TrimSpace(decoded.Text), IsFinal: isFinal}, true
		}
	}

	return ports.Transcript{Text: string(trimmed), IsFinal: true}, true
}
