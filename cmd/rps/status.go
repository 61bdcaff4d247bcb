package main

import (
	"sync/atomic"

	"rpsnet/internal/session"
)

const (
	stateWaiting     = "waiting_for_peer"
	stateHandshaking = "handshaking"
	statePlaying     = "playing"
)

// status mirrors the session for the health endpoints. The session itself
// belongs to its protocol loop, so this copy is fed from the event stream.
type status struct {
	v atomic.Value
}

func newStatus() *status {
	s := &status{}
	s.set(stateWaiting)
	return s
}

func (s *status) set(v string) {
	s.v.Store(v)
}

func (s *status) String() string {
	return s.v.Load().(string)
}

func (s *status) observe(ev session.Event) {
	switch ev.Kind {
	case session.EventHandshakeComplete:
		s.set(statePlaying)
	case session.EventSessionEnded:
		s.set("ended_" + string(ev.Reason))
	}
}

// track passes events through, updating s on the way.
func (s *status) track(in <-chan session.Event) <-chan session.Event {
	out := make(chan session.Event)
	go func() {
		defer close(out)
		for ev := range in {
			s.observe(ev)
			out <- ev
		}
	}()
	return out
}
