package sync

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRaceReturnsOperationResult(t *testing.T) {
	ok, err := RaceWithTimeout(t.Context(), func(context.Context) (bool, error) {
		return true, nil
	}, time.Second)
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}

	want := errors.New("boom")
	_, err = RaceWithTimeout(t.Context(), func(context.Context) (bool, error) {
		return false, want
	}, time.Second)
	if !errors.Is(err, want) {
		t.Fatalf("expected op error, got %v", err)
	}
}

func TestRaceTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	ok, err := RaceWithTimeout(t.Context(), func(context.Context) (bool, error) {
		<-release
		return true, nil
	}, 20*time.Millisecond)
	if !errors.Is(err, ErrSyncTimeout) || ok {
		t.Fatalf("expected timeout, got %v %v", ok, err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout took too long")
	}
}

func TestRaceRecoversPanic(t *testing.T) {
	_, err := RaceWithTimeout(t.Context(), func(context.Context) (bool, error) {
		panic("executor bug")
	}, time.Second)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestRaceHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := RaceWithTimeout(ctx, func(context.Context) (bool, error) {
		<-block
		return false, nil
	}, time.Minute)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
