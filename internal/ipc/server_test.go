package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/status"
	"github.com/merci1994dz/appdreamer-creator/internal/sync"
)

type fakeRefresher struct {
	force atomic.Bool
	rep   sync.Report
}

func (f *fakeRefresher) Refresh(_ context.Context, force bool) sync.Report {
	f.force.Store(force)
	return f.rep
}

type fakeChannels struct {
	list  []catalog.Channel
	limit atomic.Int32
}

func (f *fakeChannels) ListChannels(_ context.Context, limit int) ([]catalog.Channel, error) {
	f.limit.Store(int32(limit))
	if limit > 0 && limit < len(f.list) {
		return f.list[:limit], nil
	}
	return f.list, nil
}

func (f *fakeChannels) CountChannels(context.Context) (int, error) {
	return len(f.list), nil
}

func startServer(t *testing.T, st *status.Store, r Refresher, ch ChannelLister) *Client {
	t.Helper()
	// unix socket paths are length limited, keep it short
	dir, err := os.MkdirTemp("", "tvs")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	cfg := &config.Config{SocketPath: filepath.Join(dir, "d.sock")}

	srv, err := NewServer(cfg, zap.NewNop(), st, r, ch)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.WithVersion("1.2.3")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(cfg.SocketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("socket never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	client, err := Dial(cfg.SocketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPingAndStatus(t *testing.T) {
	st := status.NewStore()
	st.SetActive(true)
	st.AddEvent(status.Event{Kind: "SYNC", Detail: "updated via primary"})
	client := startServer(t, st, &fakeRefresher{}, &fakeChannels{})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	ver, err := client.Ping(ctx)
	if err != nil || ver != "1.2.3" {
		t.Fatalf("Ping: %q %v", ver, err)
	}

	reply, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if reply.State != "SYNCING" || !reply.Active || reply.RequestID == "" {
		t.Fatalf("unexpected status %#v", reply)
	}
	if len(reply.Events) != 1 || reply.Events[0].Detail != "updated via primary" {
		t.Fatalf("unexpected events %#v", reply.Events)
	}
}

func TestRefresh(t *testing.T) {
	r := &fakeRefresher{rep: sync.Report{FellBack: true, Err: errors.New("timeout"), Duration: 1500 * time.Millisecond}}
	client := startServer(t, status.NewStore(), r, &fakeChannels{})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	reply, err := client.Refresh(ctx, true)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !r.force.Load() {
		t.Fatal("expected forced refresh")
	}
	if reply.Outcome != string(sync.OutcomeFailed) || reply.Message != "connection failure" || reply.DurationMS != 1500 {
		t.Fatalf("unexpected reply %#v", reply)
	}
}

func TestListChannels(t *testing.T) {
	ch := &fakeChannels{list: []catalog.Channel{
		{ID: "1", Name: "Alpha", StreamURL: "http://a/1.m3u8"},
		{ID: "2", Name: "Beta", StreamURL: "http://a/2.m3u8", Country: "DZ"},
	}}
	client := startServer(t, status.NewStore(), &fakeRefresher{}, ch)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	reply, err := client.Channels(ctx, 1)
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if ch.limit.Load() != 1 {
		t.Fatalf("expected limit 1, got %d", ch.limit.Load())
	}
	if reply.Total != 2 || len(reply.Channels) != 1 || reply.Channels[0].Name != "Alpha" || reply.RequestID == "" {
		t.Fatalf("unexpected reply %#v", reply)
	}

	reply, err = client.Channels(ctx, 0)
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(reply.Channels) != 2 || reply.Channels[1].Country != "DZ" {
		t.Fatalf("unexpected channels %#v", reply.Channels)
	}
}

func TestNewServerValidates(t *testing.T) {
	if _, err := NewServer(&config.Config{}, zap.NewNop(), nil, &fakeRefresher{}, &fakeChannels{}); err == nil {
		t.Fatal("expected error without status store")
	}
	if _, err := NewServer(&config.Config{}, zap.NewNop(), status.NewStore(), &fakeRefresher{}, nil); err == nil {
		t.Fatal("expected error without channel lister")
	}
}
