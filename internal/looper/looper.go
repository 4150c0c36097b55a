// Package looper runs posted tasks one at a time, in post order, on a single
// goroutine. It is the callback thread the binder substrate delivers
// connection events on.
package looper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wellbeing/internal/logging"
)

// ErrStopped is returned when work is posted to a looper that has stopped.
var ErrStopped = errors.New("looper: stopped")

// Looper is an ordered task queue bound to one worker goroutine.
type Looper struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []func()
	started bool
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// New builds a looper. Tasks posted before Start are queued.
func New(logger *slog.Logger) *Looper {
	return &Looper{
		logger: logging.NewComponentLogger(logger, "looper"),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine. The looper stops when ctx is done or
// Stop is called. Calling Start more than once has no effect.
func (l *Looper) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.run(ctx)
}

// Post enqueues fn. It returns false when the looper has stopped.
func (l *Looper) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every task posted before the call has run.
func (l *Looper) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	if !l.Post(func() { close(barrier) }) {
		return ErrStopped
	}
	select {
	case <-barrier:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop discards pending tasks, stops the worker and waits for the task in
// progress to return. Stop is idempotent and must not be called from a task.
func (l *Looper) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.tasks = nil
	started := l.started
	l.mu.Unlock()

	close(l.quit)
	if started {
		<-l.done
	} else {
		close(l.done)
	}
}

// Done is closed once the worker has exited.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

func (l *Looper) run(ctx context.Context) {
	defer close(l.done)
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.invoke(fn)
		}
		select {
		case <-l.wake:
		case <-l.quit:
			return
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.tasks = nil
			l.mu.Unlock()
			return
		}
	}
}

func (l *Looper) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return fn, true
}

func (l *Looper) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(l.logger, "looper task panicked", "looper_task_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "report the panic with the surrounding log lines"))
		}
	}()
	fn()
}
