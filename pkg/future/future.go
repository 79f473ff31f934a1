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
// Package future provides a single-assignment result with cancellation.
// Futures are not goroutine-safe; they belong to the event loop that settles them.
package future

import (
	"context"
	"errors"
)

var ErrCancelled = errors.New("cancelled")

const (
	pending = iota
	resolved
	rejected
)

type Future[T any] struct {
	state     int
	value     T
	err       error
	callbacks []func(T, error)
	canceller func()
}

// New returns a pending future. canceller, if set, runs at most once on the first Cancel.
func New[T any](canceller func()) *Future[T] {
	return &Future[T]{canceller: canceller}
}

func Resolved[T any](v T) *Future[T] {
	return &Future[T]{state: resolved, value: v}
}

func Rejected[T any](err error) *Future[T] {
	return &Future[T]{state: rejected, err: err}
}

func (f *Future[T]) Resolve(v T) bool {
	if f.state != pending {
		return false
	}
	f.state = resolved
	f.value = v
	f.settle()
	return true
}

func (f *Future[T]) Reject(err error) bool {
	if f.state != pending {
		return false
	}
	if err == nil {
		err = errors.New("future rejected without reason")
	}
	f.state = rejected
	f.err = err
	f.settle()
	return true
}

func (f *Future[T]) settle() {
	callbacks := f.callbacks
	f.callbacks = nil
	f.canceller = nil
	for _, fn := range callbacks {
		fn(f.value, f.err)
	}
}

// Then registers fn to run once the future settles. If it already has, fn runs now.
func (f *Future[T]) Then(fn func(v T, err error)) {
	if f.state != pending {
		fn(f.value, f.err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
}

// Cancel runs the canceller and rejects the future with ErrCancelled if it is still pending afterwards.
func (f *Future[T]) Cancel() {
	if f.state != pending {
		return
	}
	if c := f.canceller; c != nil {
		f.canceller = nil
		c()
	}
	f.Reject(ErrCancelled)
}

func (f *Future[T]) Pending() bool {
	return f.state == pending
}

func (f *Future[T]) Result() (T, error) {
	return f.value, f.err
}

// Chain feeds the value of f into fn and settles the returned future with fn's result.
// A rejection of f skips fn. Cancelling the returned future cancels whichever stage is pending.
func Chain[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	var inner *Future[U]
	out := New[U](func() {
		if inner != nil {
			inner.Cancel()
		} else {
			f.Cancel()
		}
	})
	f.Then(func(v T, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		if !out.Pending() {
			return
		}
		inner = fn(v)
		inner.Then(func(u U, err error) {
			if err != nil {
				out.Reject(err)
			} else {
				out.Resolve(u)
			}
		})
	})
	return out
}

// Poster runs functions on the goroutine that owns the futures.
type Poster interface {
	Post(fn func())
}

// Await starts a future on the owning goroutine and blocks until it settles or ctx is done.
// When ctx is done first the future is cancelled and ctx.Err() is returned.
func Await[T any](ctx context.Context, p Poster, start func() *Future[T]) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	started := make(chan *Future[T], 1)

	p.Post(func() {
		f := start()
		started <- f
		f.Then(func(v T, err error) {
			done <- result{v, err}
		})
	})

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		p.Post(func() {
			(<-started).Cancel()
		})
		var zero T
		return zero, ctx.Err()
	}
}
