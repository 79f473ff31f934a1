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
package middleware

import (
	"errors"

	"github.com/caiflower/evhttp/pkg/e"
	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/caiflower/evhttp/web/protocol/http1"
)

// ErrEndOfChain is the result of calling next from the last stage.
var ErrEndOfChain = errors.New("no further request handler in chain")

type Handler = http1.Handler

// Middleware is one stage of a chain. It may change the request before calling next,
// change the response after, or answer without calling next at all.
type Middleware interface {
	Serve(req *protocol.Request, next Handler) *future.Future[*protocol.Response]
}

type MiddlewareFunc func(req *protocol.Request, next Handler) *future.Future[*protocol.Response]

func (f MiddlewareFunc) Serve(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
	return f(req, next)
}

// Terminal adapts a request handler into a final stage that never calls next.
func Terminal(h Handler) Middleware {
	return MiddlewareFunc(func(req *protocol.Request, _ Handler) *future.Future[*protocol.Response] {
		return h(req)
	})
}

type streamingRequest struct{}

func (streamingRequest) Serve(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
	return next(req)
}

// StreamingRequest marks a chain whose handlers consume request bodies as streams.
// A server seeing it skips the body buffering stages; the runner drops it.
var StreamingRequest Middleware = streamingRequest{}

func IsStreamingRequest(m Middleware) bool {
	_, ok := m.(streamingRequest)
	return ok
}

// Runner is an immutable chain of stages built once.
type Runner struct {
	chain  Handler
	stages int
}

func NewRunner(stages ...Middleware) *Runner {
	kept := make([]Middleware, 0, len(stages))
	for _, m := range stages {
		if m != nil && !IsStreamingRequest(m) {
			kept = append(kept, m)
		}
	}

	next := Handler(func(*protocol.Request) *future.Future[*protocol.Response] {
		return future.Rejected[*protocol.Response](ErrEndOfChain)
	})
	for i := len(kept) - 1; i >= 0; i-- {
		stage, rest := kept[i], next
		next = func(req *protocol.Request) *future.Future[*protocol.Response] {
			return call(stage, req, rest)
		}
	}
	return &Runner{chain: next, stages: len(kept)}
}

// Len is the number of stages in the chain.
func (r *Runner) Len() int {
	return r.stages
}

// Handle runs req through the chain. Failures other than cancellation are reported
// as *protocol.HandlerError.
func (r *Runner) Handle(req *protocol.Request) *future.Future[*protocol.Response] {
	result := r.chain(req)
	out := future.New[*protocol.Response](result.Cancel)
	result.Then(func(res *protocol.Response, err error) {
		if err == nil {
			out.Resolve(res)
			return
		}
		var herr *protocol.HandlerError
		if !errors.As(err, &herr) && !errors.Is(err, future.ErrCancelled) {
			err = &protocol.HandlerError{Cause: err}
		}
		out.Reject(err)
	})
	return out
}

func call(stage Middleware, req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
	return invoke(func(req *protocol.Request) *future.Future[*protocol.Response] {
		return stage.Serve(req, next)
	}, req)
}

// invoke turns a panic or a missing result of h into a rejected future.
func invoke(h Handler, req *protocol.Request) (result *future.Future[*protocol.Response]) {
	defer e.OnErrorFunc(func(err error) {
		result = future.Rejected[*protocol.Response](&protocol.HandlerError{Cause: err})
	})
	result = h(req)
	if result == nil {
		result = future.Rejected[*protocol.Response](errors.New("request handler returned no response"))
	}
	return
}
