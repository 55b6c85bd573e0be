// Package threads wraps the long-lived goroutines this node runs -- one wallet sync loop per
// loaded wallet -- with stop signaling and completion monitoring. The wrapped function polls a
// stop flag at each iteration of its loop, so shutdown is cooperative and a thread is never
// killed mid block application.
package threads

import (
	"context"
	"sync"

	"github.com/spacesprotocol/spaced-go/logger"

	"github.com/pkg/errors"
)

// StopFunction is the body of a thread. It must check stop.IsSet between units of work and
// return promptly once it is set.
type StopFunction func(ctx context.Context, stop *AtomicFlag) error

// Thread is one supervised goroutine. Completion can be observed through a WaitGroup or by
// selecting on the complete channel; the function's result error is kept for the owner.
type Thread struct {
	name     string
	function StopFunction
	stop     *AtomicFlag

	complete   *chan interface{}
	wait       *sync.WaitGroup
	err        error
	isComplete bool
	wasStopped bool

	sync.Mutex
}

// NewStopThread wraps a function whose loop polls the stop flag.
func NewStopThread(name string, function StopFunction) *Thread {
	return &Thread{
		name:     name,
		function: function,
		stop:     NewAtomicFlag(),
	}
}

// SetWait registers a wait group the thread joins for its lifetime.
func (t *Thread) SetWait(wait *sync.WaitGroup) {
	t.Lock()
	defer t.Unlock()

	t.wait = wait
}

// GetCompleteChannel returns a channel closed when the function returns. Read it only in a
// select; the thread's result error is available through Error afterward.
func (t *Thread) GetCompleteChannel() <-chan interface{} {
	t.Lock()
	defer t.Unlock()

	complete := make(chan interface{}, 1)
	t.complete = &complete
	return complete
}

func (t *Thread) Start(ctx context.Context) {
	t.Lock()
	name := t.name
	wait := t.wait
	t.Unlock()

	if wait != nil {
		wait.Add(1)
	}

	go func() {
		logger.Debug(ctx, "Starting: %s", name)

		err := t.function(ctx, t.stop)
		if err == nil {
			logger.Debug(ctx, "Finished: %s", name)
		} else {
			logger.Warn(ctx, "Finished: %s : %s", name, err)
		}

		t.Lock()
		t.err = err
		t.isComplete = true
		if t.complete != nil {
			close(*t.complete)
		}
		t.Unlock()

		if wait != nil {
			wait.Done()
		}
	}()
}

// Stop sets the stop flag. It is safe to call more than once.
func (t *Thread) Stop(ctx context.Context) {
	t.Lock()
	defer t.Unlock()

	if t.wasStopped {
		return
	}

	t.stop.Set()
	t.wasStopped = true
}

func (t *Thread) IsComplete() bool {
	t.Lock()
	defer t.Unlock()

	return t.isComplete
}

// Error returns the function's result, wrapped with the thread name. Nil until the thread
// completes.
func (t *Thread) Error() error {
	if t == nil {
		return nil
	}

	t.Lock()
	defer t.Unlock()

	return errors.Wrap(t.err, t.name)
}
