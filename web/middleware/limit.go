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
	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/limiter"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/protocol"
)

// LimitConcurrentRequests lets at most limit requests past this stage at a time.
// Requests beyond the limit wait in arrival order; a waiting request's streaming
// body is paused and its events are held until the request is admitted.
func LimitConcurrentRequests(limit int) *ConcurrencyLimit {
	return &ConcurrencyLimit{admission: limiter.NewConcurrency(limit)}
}

type ConcurrencyLimit struct {
	admission *limiter.Concurrency
}

// Pending is the number of admitted requests still in flight.
func (l *ConcurrencyLimit) Pending() int {
	return l.admission.Pending()
}

// Queued is the number of requests waiting for admission.
func (l *ConcurrencyLimit) Queued() int {
	return l.admission.Queued()
}

func (l *ConcurrencyLimit) Serve(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
	ticket := l.admission.Acquire()
	if !ticket.Pending() {
		t, _ := ticket.Result()
		return l.proceed(t, req, next, nil)
	}

	var held *nio.PauseBuffer
	if body, ok := req.Body().(protocol.StreamingBody); ok {
		held = nio.NewPauseBuffer(body)
		held.Pause()
		req = req.WithBody(&heldBody{PauseBuffer: held, size: body.Size()})
		ticket.Then(func(_ *limiter.Ticket, err error) {
			if err != nil {
				held.Close()
			}
		})
	}

	return future.Chain(ticket, func(t *limiter.Ticket) *future.Future[*protocol.Response] {
		return l.proceed(t, req, next, held)
	})
}

func (l *ConcurrencyLimit) proceed(t *limiter.Ticket, req *protocol.Request, next Handler, held *nio.PauseBuffer) *future.Future[*protocol.Response] {
	result := invoke(next, req)
	if held != nil {
		held.Resume()
	}
	result.Then(func(*protocol.Response, error) {
		t.Release()
	})
	return result
}

type heldBody struct {
	*nio.PauseBuffer
	size int64
}

func (b *heldBody) Size() int64 {
	return b.size
}
