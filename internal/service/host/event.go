package host

import (
	"sync"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// EventKind tells which field of an Event is set.
type EventKind string

const (
	EventStateChanged EventKind = "state_changed"
	EventTranscript   EventKind = "transcript"
	EventTick         EventKind = "tick"
	EventCapability   EventKind = "capability"
	EventTerminal     EventKind = "terminal"
)

// Event is one host notification of a session.
type Event struct {
	SessionID string
	// Seq numbers events of a session from 1, in delivery order.
	Seq        uint64
	Kind       EventKind
	At         time.Time
	State      alarm.State
	Transcript string
	Notice     *alarm.CapabilityNotice
	Outcome    *alarm.Outcome
}

// recorder is the event sink of one session. It keeps the replayable
// history and fans events out to subscribers.
type recorder struct {
	sessionID string
	buffer    int
	now       func() time.Time

	mu          sync.Mutex
	seq         uint64
	history     []Event
	subscribers map[uint64]*subscriber
	nextSub     uint64
	finished    bool
	finishedAt  time.Time
}

type subscriber struct {
	ch        chan Event
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

func newRecorder(sessionID string, buffer int, now func() time.Time) *recorder {
	return &recorder{
		sessionID:   sessionID,
		buffer:      buffer,
		now:         now,
		subscribers: make(map[uint64]*subscriber),
	}
}

func (r *recorder) OnStateChanged(state alarm.State) {
	r.publish(Event{Kind: EventStateChanged, State: state})
}

func (r *recorder) OnTranscript(text string) {
	r.publish(Event{Kind: EventTranscript, Transcript: text})
}

func (r *recorder) OnTick(now time.Time) {
	r.publish(Event{Kind: EventTick, At: now})
}

func (r *recorder) OnCapability(notice alarm.CapabilityNotice) {
	r.publish(Event{Kind: EventCapability, At: notice.At, Notice: &notice})
}

func (r *recorder) OnTerminal(outcome alarm.Outcome) {
	r.publish(Event{Kind: EventTerminal, At: outcome.ResolvedAt, Outcome: &outcome})
}

// publish stamps, records and fans out ev. Ticks are not kept in history.
// A subscriber that cannot keep up is disconnected.
func (r *recorder) publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}

	r.seq++
	ev.SessionID = r.sessionID
	ev.Seq = r.seq

	if ev.At.IsZero() {
		ev.At = r.now()
	}

	if ev.Kind != EventTick {
		r.history = append(r.history, ev)
	}

	for id, sub := range r.subscribers {
		select {
		case sub.ch <- ev:
		default:
			sub.close()
			delete(r.subscribers, id)
		}
	}

	if ev.Kind != EventTerminal {
		return
	}

	r.finished = true
	r.finishedAt = r.now()

	for id, sub := range r.subscribers {
		sub.close()
		delete(r.subscribers, id)
	}
}

// subscribe replays the history and then streams live events.
// The channel is closed after the terminal event or by cancel.
func (r *recorder) subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, len(r.history)+r.buffer)}
	for _, ev := range r.history {
		sub.ch <- ev
	}

	if r.finished {
		sub.close()

		return sub.ch, func() {}
	}

	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = sub

	cancel := func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()

		sub.close()
	}

	return sub.ch, cancel
}

// finishedBefore reports whether the session ended before cutoff.
func (r *recorder) finishedBefore(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.finished && r.finishedAt.Before(cutoff)
}
