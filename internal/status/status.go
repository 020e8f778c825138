package status

import (
	"sync"
	"time"
)

// State describes high-level sync state.
type State int

const (
	StateUnspecified State = iota
	StateIdle
	StateSyncing
	StateError
)

// String returns the wire label for a state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSyncing:
		return "SYNCING"
	case StateError:
		return "ERROR"
	default:
		return "UNSPECIFIED"
	}
}

// Event captures a recent sync or import event.
type Event struct {
	Kind   string
	Detail string
	When   time.Time
}

// Snapshot captures current status.
type Snapshot struct {
	State        State
	Message      string
	Active       bool
	LastOutcome  string
	LastEvent    string
	UpdatedAt    time.Time
	RecentEvents []Event
}

// Store holds the latest status snapshot. The active flag mirrors the sync
// lock and never gates sync execution.
type Store struct {
	mu        sync.Mutex
	snapshot  Snapshot
	maxEvents int
	eventRing []Event
}

// NewStore constructs a status store with an initial idle state.
func NewStore() *Store {
	s := &Store{maxEvents: 20}
	s.snapshot = Snapshot{State: StateIdle, Message: "idle", UpdatedAt: time.Now()}
	return s
}

// SetMaxEvents sets the max number of events to retain.
func (s *Store) SetMaxEvents(max int) {
	if max <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxEvents = max
	if len(s.eventRing) > max {
		s.eventRing = s.eventRing[len(s.eventRing)-max:]
	}
	s.snapshot.RecentEvents = append([]Event(nil), s.eventRing...)
}

// SetActive records whether a sync attempt currently holds the lock.
func (s *Store) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Active = active
	s.snapshot.UpdatedAt = time.Now()
	if active {
		s.snapshot.State = StateSyncing
		s.snapshot.Message = "sync in progress"
		return
	}
	if s.snapshot.State == StateSyncing {
		s.snapshot.State = StateIdle
		s.snapshot.Message = "idle"
	}
}

// IsActive reports the most recent SetActive value.
func (s *Store) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Active
}

// RecordOutcome stores the result label of the latest finished sync attempt.
func (s *Store) RecordOutcome(outcome, message string, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastOutcome = outcome
	s.snapshot.UpdatedAt = time.Now()
	if s.snapshot.Active {
		return
	}
	s.snapshot.Message = message
	if failed {
		s.snapshot.State = StateError
	} else {
		s.snapshot.State = StateIdle
	}
}

// AddEvent appends a recent event and updates LastEvent.
func (s *Store) AddEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.When.IsZero() {
		evt.When = time.Now()
	}

	s.eventRing = append(s.eventRing, evt)
	if len(s.eventRing) > s.maxEvents {
		s.eventRing = s.eventRing[len(s.eventRing)-s.maxEvents:]
	}

	s.snapshot.LastEvent = evt.Kind + " " + evt.Detail
	s.snapshot.UpdatedAt = time.Now()
	s.snapshot.RecentEvents = append([]Event(nil), s.eventRing...)
}

// Current returns a copy of the latest snapshot.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	copySnapshot := s.snapshot
	copySnapshot.RecentEvents = append([]Event(nil), s.eventRing...)
	return copySnapshot
}
