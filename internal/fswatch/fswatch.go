package fswatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/status"
	"github.com/merci1994dz/appdreamer-creator/internal/sync"
)

// Op describes a normalized filesystem operation.
type Op int

const (
	OpUnknown Op = iota
	OpCreate
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event is a normalized file event.
type Event struct {
	Path string
	Op   Op
	When time.Time
}

// TriggerSink receives sync triggers for settled catalog files.
type TriggerSink interface {
	Enqueue(t sync.Trigger) bool
}

// Watcher observes the import directory for sideloaded catalog files.
type Watcher struct {
	logger *zap.Logger
	dir    string
	status *status.Store
	sink   TriggerSink

	watcher *fsnotify.Watcher

	mu      gosync.Mutex
	pending map[string]Event

	debounce time.Duration
}

// NewWatcher constructs an import directory watcher.
func NewWatcher(logger *zap.Logger, cfg *config.Config, statusStore *status.Store, sink TriggerSink) (*Watcher, error) {
	if logger == nil {
		return nil, errors.New("fswatch: logger is required")
	}
	if sink == nil {
		return nil, errors.New("fswatch: trigger sink is required")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		logger:   logger,
		dir:      cfg.ImportDir,
		status:   statusStore,
		sink:     sink,
		watcher:  w,
		pending:  make(map[string]Event),
		debounce: 300 * time.Millisecond,
	}, nil
}

// Start begins watching and processing events. It is a no-op without an import dir.
func (w *Watcher) Start(ctx context.Context) error {
	if w.dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching import dir", zap.String("dir", w.dir))

	go w.run(ctx)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(evt)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fswatch error", zap.Error(err))
			w.status.AddEvent(status.Event{Kind: "IMPORT", Detail: "watch error"})
		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleEvent(evt fsnotify.Event) {
	path := evt.Name
	if w.shouldIgnore(path) {
		return
	}
	op := normalizeOp(evt.Op)
	if op == OpUnknown {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.pending[path]; ok {
		op = mergeOp(prev.Op, op)
	}
	w.pending[path] = Event{Path: path, Op: op, When: time.Now().Add(w.debounce)}
}

func (w *Watcher) flushPending() {
	now := time.Now()
	var ready []Event

	w.mu.Lock()
	for path, evt := range w.pending {
		if !evt.When.After(now) {
			ready = append(ready, Event{Path: path, Op: evt.Op, When: now})
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, evt := range ready {
		if evt.Op == OpRemove || evt.Op == OpRename || evt.Op == OpChmod {
			continue
		}
		// a rename away from the dir can leave a write pending
		if _, err := os.Stat(evt.Path); err != nil {
			continue
		}
		w.status.AddEvent(status.Event{Kind: "IMPORT", Detail: formatEvent(evt, w.dir)})
		w.sink.Enqueue(sync.Trigger{Reason: sync.ReasonImport, Path: evt.Path})
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return !strings.EqualFold(filepath.Ext(base), ".json")
}

func normalizeOp(op fsnotify.Op) Op {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return OpCreate
	case op&fsnotify.Write == fsnotify.Write:
		return OpWrite
	case op&fsnotify.Remove == fsnotify.Remove:
		return OpRemove
	case op&fsnotify.Rename == fsnotify.Rename:
		return OpRename
	case op&fsnotify.Chmod == fsnotify.Chmod:
		return OpChmod
	default:
		return OpUnknown
	}
}

func formatEvent(evt Event, root string) string {
	path := evt.Path
	if root != "" {
		if rel, err := filepath.Rel(root, evt.Path); err == nil {
			path = rel
		}
	}
	return OpString(evt.Op) + " " + path
}
