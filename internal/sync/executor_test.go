package sync

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

func catalogServer(t *testing.T, body *atomic.Value, queries chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if queries != nil {
			select {
			case queries <- r.URL.RawQuery:
			default:
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteUpdatesCacheAndSnapshot(t *testing.T) {
	store := newTestStorage(t)
	var body atomic.Value
	body.Store(catalogA)
	queries := make(chan string, 4)
	srv := catalogServer(t, &body, queries)
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")

	exec, err := NewHTTPExecutor(zap.NewNop(), []Source{{Name: "primary", URL: srv.URL}}, store, ExecutorOptions{
		SnapshotPath: snapPath,
		Timeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}

	params := Params{CacheBuster: "_=1&nocache=abc", Skew: "skew=40000"}
	updated, err := exec.Execute(t.Context(), nil, false, params)
	if err != nil || !updated {
		t.Fatalf("expected update, got %v %v", updated, err)
	}
	if q := <-queries; q != params.Query() {
		t.Fatalf("unexpected query %q", q)
	}

	n, err := store.CountChannels(t.Context())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cached channels, got %d %v", n, err)
	}
	snap, err := catalog.ReadSnapshot(snapPath)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if snap.Source != "primary" || len(snap.Channels) != 2 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}

	updated, err = exec.Execute(t.Context(), nil, false, params)
	if err != nil || updated {
		t.Fatalf("expected no update for same catalog, got %v %v", updated, err)
	}
	updated, err = exec.Execute(t.Context(), nil, true, params)
	if err != nil || !updated {
		t.Fatalf("expected forced update, got %v %v", updated, err)
	}

	body.Store(catalogB)
	updated, err = exec.Execute(t.Context(), nil, false, params)
	if err != nil || !updated {
		t.Fatalf("expected update for changed catalog, got %v %v", updated, err)
	}
	state, err := store.GetSyncState(t.Context())
	if err != nil || state.Origin != storage.OriginRemote || state.ChannelCount != 1 {
		t.Fatalf("unexpected state: %#v %v", state, err)
	}
}

func TestExecutePrefersHintedSource(t *testing.T) {
	store := newTestStorage(t)
	var bodyA, bodyB atomic.Value
	bodyA.Store(catalogA)
	bodyB.Store(catalogB)
	a := catalogServer(t, &bodyA, nil)
	b := catalogServer(t, &bodyB, nil)

	sources := []Source{{Name: "a", URL: a.URL}, {Name: "b", URL: b.URL}}
	exec, err := NewHTTPExecutor(zap.NewNop(), sources, store, ExecutorOptions{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}
	if _, err := exec.Execute(t.Context(), &sources[1], false, Params{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	state, err := store.GetSyncState(t.Context())
	if err != nil || state.Source != "b" {
		t.Fatalf("expected hinted source b, got %#v %v", state, err)
	}
}

func TestExecuteFallsThroughSources(t *testing.T) {
	store := newTestStorage(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer broken.Close()
	var body atomic.Value
	body.Store(catalogA)
	good := catalogServer(t, &body, nil)

	exec, err := NewHTTPExecutor(zap.NewNop(), []Source{
		{Name: "broken", URL: broken.URL},
		{Name: "good", URL: good.URL},
	}, store, ExecutorOptions{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}
	updated, err := exec.Execute(t.Context(), nil, false, Params{})
	if err != nil || !updated {
		t.Fatalf("expected second source to serve, got %v %v", updated, err)
	}
}

func TestExecuteAllSourcesFail(t *testing.T) {
	store := newTestStorage(t)
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	exec, err := NewHTTPExecutor(zap.NewNop(), []Source{
		{Name: "failing", URL: failing.URL},
		{Name: "garbage", URL: garbage.URL},
	}, store, ExecutorOptions{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}

	updated, err := exec.Execute(t.Context(), nil, false, Params{})
	if updated || err == nil {
		t.Fatalf("expected failure, got %v %v", updated, err)
	}
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, catalog.ErrInvalidCatalog) {
		t.Fatalf("expected joined source errors, got %v", err)
	}
	state, err := store.GetSyncState(t.Context())
	if err != nil || state == nil || !strings.Contains(state.LastError, "failing") {
		t.Fatalf("expected recorded sync error, got %#v %v", state, err)
	}
}

func TestExecuteNoSources(t *testing.T) {
	exec, err := NewHTTPExecutor(zap.NewNop(), nil, newTestStorage(t), ExecutorOptions{})
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}
	if _, err := exec.Execute(t.Context(), nil, false, Params{}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}
