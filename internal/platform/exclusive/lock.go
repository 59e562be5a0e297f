// Package exclusive guards a shared device, such as the speaker or the
// microphone, against use by two alarm sessions at once.
//
// Ownership across processes is recorded in a marker file holding the owner's
// PID. A marker whose process is gone is treated as stale and taken over.
// Inside a process the device belongs to one owner at a time; every other
// owner is refused just like another process would be.
package exclusive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

const (
	markerSuffix      = ".lock"
	markerPermissions = 0o600
	dirPermissions    = 0o750
)

// Lock is a process-level claim on one named device.
// It is reentrant for the owner holding it.
type Lock struct {
	path string

	mu    sync.Mutex
	owner string
	refs  int
}

// New returns a lock for name stored under dir. An empty dir uses the OS temp dir.
func New(dir, name string) *Lock {
	if dir == "" {
		dir = os.TempDir()
	}

	return &Lock{path: filepath.Join(dir, name+markerSuffix)}
}

// Path returns the marker file location.
func (l *Lock) Path() string {
	return l.path
}

// Owner returns the owner holding the device, or "" when it is free here.
func (l *Lock) Owner() string {
	if l == nil {
		return ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.owner
}

// Acquire claims the device for owner. It fails with alarm.ErrDeviceUnavailable
// while another owner in this process or another live process holds it.
func (l *Lock) Acquire(owner string) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs > 0 {
		if owner != l.owner {
			return fmt.Errorf("%w: %s is held by %s", alarm.ErrDeviceUnavailable, l.path, l.owner)
		}

		l.refs++

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), dirPermissions); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	// One retry after removing a stale marker.
	for range 2 {
		err := l.create()
		if err == nil {
			l.owner, l.refs = owner, 1

			return nil
		}

		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create lock marker: %w", err)
		}

		if err = l.checkOwner(); err != nil {
			return err
		}

		if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock marker: %w", err)
		}
	}

	return fmt.Errorf("%w: %s is contended", alarm.ErrDeviceUnavailable, l.path)
}

// Release drops one claim of owner and removes the marker with the last one.
// Releasing on behalf of an owner that does not hold the device does nothing.
func (l *Lock) Release(owner string) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 || owner != l.owner {
		return nil
	}

	l.refs--
	if l.refs > 0 {
		return nil
	}

	l.owner = ""

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock marker: %w", err)
	}

	return nil
}

func (l *Lock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerPermissions)
	if err != nil {
		return err
	}

	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return err
}

// checkOwner returns nil when the marker is stale or ours.
func (l *Lock) checkOwner() error {
	contents, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read lock marker: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("look up lock owner: %w", err)
	}

	if process == nil {
		return nil
	}

	return fmt.Errorf("%w: held by %s (pid %d)", alarm.ErrDeviceUnavailable, process.Executable(), pid)
}
