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
	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/protocol"
)

const (
	DefaultRequestIDHeader = "X-Request-Id"
	AttrRequestID          = "request_id"
)

// RequestID tags each request with an id taken from header or generated, echoes it on
// the response and makes it the trace id of log lines written while next runs.
func RequestID(header string) Middleware {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return MiddlewareFunc(func(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
		id := req.Header().Get(header)
		if id == "" {
			id = tools.UUID()
			req = req.WithHeader(header, id)
		}
		req = req.WithAttribute(AttrRequestID, id)

		var result *future.Future[*protocol.Response]
		golocalv1.WithTraceID(id, func() {
			result = invoke(next, req)
		})
		return future.Chain(result, func(res *protocol.Response) *future.Future[*protocol.Response] {
			return future.Resolved(res.WithHeader(header, id))
		})
	})
}
