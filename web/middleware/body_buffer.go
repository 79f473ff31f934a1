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
	"fmt"
	"math"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/web/protocol"
)

// RequestBodyBuffer reads a streaming request body into memory before calling next.
//
// A body larger than sizeLimit is drained and dropped, and next sees an empty body.
// An error of the body rejects the request. Cancelling while buffering closes the body.
// A negative sizeLimit means no limit.
func RequestBodyBuffer(sizeLimit int64) Middleware {
	if sizeLimit < 0 {
		sizeLimit = math.MaxInt64
	}
	return MiddlewareFunc(func(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
		body := req.Body()
		size := body.Size()

		stream, ok := body.(protocol.StreamingBody)
		if !ok || !stream.IsReadable() {
			if ok || size > sizeLimit {
				req = req.WithBody(protocol.NewBufferedBody(nil))
			}
			return next(req)
		}
		if size == 0 {
			return next(req.WithBody(protocol.NewBufferedBody(nil)))
		}

		limit := sizeLimit
		if size > sizeLimit {
			limit = 0
		}

		var (
			buffer []byte
			inner  *future.Future[*protocol.Response]
			failed bool
		)
		out := future.New[*protocol.Response](func() {
			if inner != nil {
				inner.Cancel()
				return
			}
			failed = true
			stream.Close()
		})

		var offData func()
		offData = stream.OnData(func(p []byte) {
			buffer = append(buffer, p...)
			if int64(len(buffer)) > limit {
				offData()
				buffer = nil
			}
		})
		stream.OnError(func(err error) {
			failed = true
			out.Reject(fmt.Errorf("error while buffering request body: %w", err))
			stream.Close()
		})
		stream.OnClose(func() {
			if failed || !out.Pending() {
				return
			}
			inner = next(req.WithBody(protocol.NewBufferedBody(buffer)))
			buffer = nil
			inner.Then(func(res *protocol.Response, err error) {
				if err != nil {
					out.Reject(err)
				} else {
					out.Resolve(res)
				}
			})
		})
		return out
	})
}
