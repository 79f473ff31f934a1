/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package nio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caiflower/evhttp/pkg/basic"
	"github.com/caiflower/evhttp/pkg/e"
	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
	"github.com/caiflower/evhttp/pkg/logger"
)

var ErrLoopRunning = errors.New("event loop is already running")

// Timer is a one-shot callback scheduled on a loop.
type Timer interface {
	// Stop prevents the timer from firing and reports whether it was still pending.
	Stop() bool
}

// Scheduler creates timers whose callbacks run on the owning loop.
type Scheduler interface {
	AddTimer(d time.Duration, fn func()) Timer
}

type timer struct {
	when    time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// EventLoop runs posted tasks and timers one at a time on a single goroutine.
// Protocol objects that hang off the loop are only touched from that goroutine.
type EventLoop struct {
	name   string
	logger logger.ILog

	lock  sync.Mutex
	tasks []func()
	wake  chan struct{}

	timers *basic.Heap[*timer]
	seq    uint64

	goID    int64
	running int32
	stop    chan struct{}
	done    chan struct{}
}

func NewEventLoop(name string, log logger.ILog) *EventLoop {
	if log == nil {
		log = logger.DefaultLogger()
	}
	return &EventLoop{
		name:   name,
		logger: log,
		wake:   make(chan struct{}, 1),
		timers: basic.NewHeap(func(a, b *timer) bool {
			if a.when.Equal(b.when) {
				return a.seq < b.seq
			}
			return a.when.Before(b.when)
		}),
		goID: -1,
	}
}

func (l *EventLoop) Name() string {
	return l.name
}

// Post queues fn to run on the loop. It is safe to call from any goroutine.
func (l *EventLoop) Post(fn func()) {
	l.lock.Lock()
	l.tasks = append(l.tasks, fn)
	l.lock.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AddTimer must be called on the loop.
func (l *EventLoop) AddTimer(d time.Duration, fn func()) Timer {
	l.seq++
	t := &timer{when: time.Now().Add(d), seq: l.seq, fn: fn}
	l.timers.Offer(t)
	return t
}

// InLoop reports whether the caller runs on the loop goroutine.
func (l *EventLoop) InLoop() bool {
	return atomic.LoadInt64(&l.goID) == golocalv1.GoID()
}

// Run drives the loop on the calling goroutine until ctx is done or Close is called.
func (l *EventLoop) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return ErrLoopRunning
	}
	l.lock.Lock()
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.lock.Unlock()

	atomic.StoreInt64(&l.goID, golocalv1.GoID())
	defer func() {
		atomic.StoreInt64(&l.goID, -1)
		atomic.StoreInt32(&l.running, 0)
		close(done)
	}()

	l.logger.Debug("[loop] %s started", l.name)
	wait := time.NewTimer(time.Hour)
	defer wait.Stop()

	for {
		l.runTasks()
		delay := l.runTimers()

		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}
		if delay < 0 {
			delay = time.Hour
		}
		wait.Reset(delay)

		select {
		case <-ctx.Done():
			l.logger.Debug("[loop] %s stopped. Cause of %s", l.name, ctx.Err())
			return ctx.Err()
		case <-stop:
			l.logger.Debug("[loop] %s stopped", l.name)
			return nil
		case <-l.wake:
		case <-wait.C:
		}
	}
}

func (l *EventLoop) runTasks() {
	l.lock.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.lock.Unlock()

	for _, fn := range tasks {
		l.call(fn)
	}
}

// runTimers fires due timers and returns the delay until the next one, or -1 when none is scheduled.
// Timers added while firing wait for the next pass.
func (l *EventLoop) runTimers() time.Duration {
	now := time.Now()
	limit := l.seq
	for l.timers.Size() > 0 {
		t, _ := l.timers.Peek()
		if t.stopped {
			_, _ = l.timers.Poll()
			continue
		}
		if t.when.After(now) || t.seq > limit {
			if t.seq > limit && !t.when.After(now) {
				return 0
			}
			return t.when.Sub(now)
		}
		_, _ = l.timers.Poll()
		t.fired = true
		l.call(t.fn)
	}
	return -1
}

func (l *EventLoop) call(fn func()) {
	defer e.OnErrorFunc(func(err error) {
		l.logger.Error("[loop] %s task panic: %s", l.name, err)
	})
	fn()
}

// Start runs the loop on a new goroutine.
func (l *EventLoop) Start() error {
	started := make(chan error, 1)
	go func() {
		l.Post(func() { started <- nil })
		if err := l.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case started <- err:
			default:
			}
		}
	}()
	return <-started
}

// Close stops the loop and waits for the running task to finish. Queued tasks are dropped.
func (l *EventLoop) Close() {
	l.lock.Lock()
	stop, done := l.stop, l.done
	if stop == nil || atomic.LoadInt32(&l.running) == 0 {
		l.lock.Unlock()
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	l.lock.Unlock()

	if !l.InLoop() {
		<-done
	}
}
