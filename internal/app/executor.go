package app

import (
	"errors"
	"runtime"
	"sync"
)

// ErrExecutorClosed is returned for work submitted after Close.
var ErrExecutorClosed = errors.New("executor closed")

// ThreadExecutor runs functions one at a time on a single goroutine locked
// to its OS thread. Graphics contexts and platform session calls that must
// stay on one thread go through an executor.
type ThreadExecutor struct {
	name  string
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewThreadExecutor starts the executor goroutine.
func NewThreadExecutor(name string) *ThreadExecutor {
	e := &ThreadExecutor{
		name:  name,
		tasks: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *ThreadExecutor) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)

	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.quit:
			return
		}
	}
}

// Name returns the executor's name.
func (e *ThreadExecutor) Name() string {
	return e.name
}

// Do runs fn on the executor thread and waits for it. Calling Do from the
// executor's own thread deadlocks.
func (e *ThreadExecutor) Do(fn func() error) error {
	errc := make(chan error, 1)
	task := func() { errc <- fn() }
	select {
	case e.tasks <- task:
	case <-e.quit:
		return ErrExecutorClosed
	}
	return <-errc
}

// Go hands fn to the executor thread without waiting for it to finish.
// It returns once the executor has picked fn up.
func (e *ThreadExecutor) Go(fn func()) error {
	select {
	case e.tasks <- fn:
		return nil
	case <-e.quit:
		return ErrExecutorClosed
	}
}

// Close stops the executor after the running function returns.
func (e *ThreadExecutor) Close() {
	e.once.Do(func() { close(e.quit) })
	<-e.done
}
