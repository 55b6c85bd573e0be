package threads

import (
	"sync/atomic"
)

// AtomicFlag is a one-bit signal shared across threads. The wallet sync loop polls it each
// iteration as its shutdown check.
type AtomicFlag struct {
	value atomic.Bool
}

func NewAtomicFlag() *AtomicFlag {
	return &AtomicFlag{}
}

func (f *AtomicFlag) Set() {
	f.value.Store(true)
}

func (f *AtomicFlag) Clear() {
	f.value.Store(false)
}

func (f *AtomicFlag) IsSet() bool {
	return f.value.Load()
}
