package sync

import (
	"go.uber.org/zap"
)

// Trigger reasons.
const (
	ReasonImport = "import"
	ReasonManual = "manual"
)

// Trigger asks the engine for a sync outside the auto-sync schedule. A
// trigger with a Path imports that catalog file first.
type Trigger struct {
	Reason string
	Path   string
	Force  bool
}

// Queue buffers sync triggers for the engine loop.
type Queue struct {
	logger *zap.Logger
	ch     chan Trigger
}

// NewQueue constructs a queue with the given capacity.
func NewQueue(logger *zap.Logger, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{logger: logger, ch: make(chan Trigger, capacity)}
}

// Enqueue adds a trigger to the queue. It reports false when the queue is full.
func (q *Queue) Enqueue(t Trigger) bool {
	select {
	case q.ch <- t:
		return true
	default:
		q.logger.Warn("sync queue full; dropping trigger", zap.String("reason", t.Reason), zap.String("path", t.Path))
		return false
	}
}

// Channel returns a receive-only channel for triggers.
func (q *Queue) Channel() <-chan Trigger {
	return q.ch
}
