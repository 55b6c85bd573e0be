package threads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestStopThread_RunsUntilStopped(t *testing.T) {
	iterations := 0

	thread := NewStopThread("counter", func(ctx context.Context, stop *AtomicFlag) error {
		for !stop.IsSet() {
			iterations++
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	complete := thread.GetCompleteChannel()
	thread.Start(context.Background())

	time.Sleep(20 * time.Millisecond)
	thread.Stop(context.Background())

	select {
	case <-complete:
	case <-time.After(time.Second):
		t.Fatal("thread did not stop")
	}

	if iterations == 0 {
		t.Fatal("expected the function to have run")
	}
	if !thread.IsComplete() {
		t.Fatal("expected IsComplete after the complete channel closed")
	}
	if err := thread.Error(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopThread_SurfacesError(t *testing.T) {
	boom := errors.New("boom")

	thread := NewStopThread("failing", func(ctx context.Context, stop *AtomicFlag) error {
		return boom
	})

	complete := thread.GetCompleteChannel()
	thread.Start(context.Background())

	select {
	case <-complete:
	case <-time.After(time.Second):
		t.Fatal("thread did not complete")
	}

	if errors.Cause(thread.Error()) != boom {
		t.Fatalf("expected the function's error, got %v", thread.Error())
	}
}

func TestStopThread_JoinsWaitGroup(t *testing.T) {
	thread := NewStopThread("waiting", func(ctx context.Context, stop *AtomicFlag) error {
		for !stop.IsSet() {
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	var wait sync.WaitGroup
	thread.SetWait(&wait)
	thread.Start(context.Background())
	thread.Stop(context.Background())

	done := make(chan struct{})
	go func() {
		wait.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait group never released")
	}
}

func TestStopThread_StopIsIdempotent(t *testing.T) {
	thread := NewStopThread("idempotent", func(ctx context.Context, stop *AtomicFlag) error {
		for !stop.IsSet() {
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	complete := thread.GetCompleteChannel()
	thread.Start(context.Background())
	thread.Stop(context.Background())
	thread.Stop(context.Background())

	select {
	case <-complete:
	case <-time.After(time.Second):
		t.Fatal("thread did not stop")
	}
}
