package session

import (
	"sync"
	"time"

	"github.com/callsight/callsight/pkg/audio"
)

// State is a session's position in its lifecycle. Closed is terminal; a
// closed session is purged from the registry and never revived.
type State int

const (
	StateInitializing State = iota
	StateActive
	StateFlushing
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateFlushing:
		return "flushing"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the per-stream pipeline state: identity, audio buffer, and the
// transcript sequence counter. One Session exists per streamID while the
// stream is live; the manager's registry is the single source of truth.
//
// The interior mutex guards buffer, state, sequence, and the in-flight
// flush marker. flushWG tracks the at-most-one asynchronous flush so OnStop
// can wait for it before the final drain.
type Session struct {
	streamID  string
	callID    string
	startedAt time.Time

	mu            sync.Mutex
	state         State
	buffer        *audio.Buffer
	sequence      int
	flushInFlight bool
	flushWG       sync.WaitGroup
}

// nextSequence hands out the next transcript chunk sequence, contiguous
// from 0 for the session's lifetime.
func (s *Session) nextSequence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.sequence
	s.sequence++
	return n
}
