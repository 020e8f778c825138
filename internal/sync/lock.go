package sync

import (
	"sync"
)

// pending is a sync request deferred while another attempt held the lock.
type pending struct {
	run  func() Report
	done chan Report
}

// Lock serializes sync attempts and queues the requests that arrive while an
// attempt is running. Queued requests are replayed one at a time in arrival
// order, each exactly once.
type Lock struct {
	mu       sync.Mutex
	locked   bool
	queue    []*pending
	onChange func(locked bool)
}

// NewLock constructs a lock. onChange, when set, is called under the lock's
// mutex on every locked/unlocked transition.
func NewLock(onChange func(locked bool)) *Lock {
	return &Lock{onChange: onChange}
}

// IsLocked reports whether an attempt currently holds the lock.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Pending returns the number of queued requests.
func (l *Lock) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// acquireOrEnqueue takes the lock if it is free. Otherwise run is appended to
// the queue and the returned channel receives its report once it has been
// replayed.
func (l *Lock) acquireOrEnqueue(run func() Report) (<-chan Report, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		l.locked = true
		if l.onChange != nil {
			l.onChange(true)
		}
		return nil, true
	}
	p := &pending{run: run, done: make(chan Report, 1)}
	l.queue = append(l.queue, p)
	return p.done, false
}

// release ends the current attempt. When requests are queued the lock passes
// straight to the head of the queue, which the caller must start.
func (l *Lock) release() *pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return nil
	}
	if len(l.queue) == 0 {
		l.locked = false
		if l.onChange != nil {
			l.onChange(false)
		}
		return nil
	}
	next := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return next
}

// start runs a handed-off request and delivers its report.
func (p *pending) start() {
	go func() {
		p.done <- p.run()
	}()
}
