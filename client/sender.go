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
package client

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/caiflower/evhttp/web/protocol/http1"
)

// Sender sends requests over connections from a ConnectionManager.
type Sender struct {
	manager *ConnectionManager
}

func NewSender(manager *ConnectionManager) *Sender {
	return &Sender{manager: manager}
}

func (s *Sender) Manager() *ConnectionManager {
	return s.manager
}

// Send writes req and resolves with the response head once it arrived. The response
// body streams the rest of the exchange.
//
// Cancelling the result before a connection exists cancels the connect; afterwards it
// closes the connection.
func (s *Sender) Send(req *protocol.Request) *future.Future[*protocol.Response] {
	u := req.URI()
	if u == nil || u.Scheme == "" || u.Host == "" {
		return future.Rejected[*protocol.Response](protocol.ErrInvalidRequestTarget)
	}
	origin, err := nio.OriginOf(u)
	if err != nil {
		return future.Rejected[*protocol.Response](protocol.ErrInvalidRequestTarget)
	}

	req, chunked := prepare(req, origin)
	stream := NewClientRequestStream(s.manager, origin, req)
	var result *future.Future[*protocol.Response]
	result = future.New[*protocol.Response](func() {
		result.Reject(protocol.ErrCancelled)
		stream.Close()
	})
	stream.Response().Then(func(res *protocol.Response, err error) {
		if err != nil {
			result.Reject(err)
		} else {
			result.Resolve(res)
		}
	})

	body := req.Body()
	if b, ok := body.(protocol.StreamingBody); ok && b.Size() != 0 && b.IsReadable() {
		s.pipe(b, stream, chunked, result)
		return result
	}
	if b, ok := body.(interface{ Bytes() []byte }); ok {
		stream.End(b.Bytes())
	} else {
		stream.End(nil)
	}
	return result
}

func (s *Sender) pipe(body protocol.StreamingBody, stream *ClientRequestStream, chunked bool, result *future.Future[*protocol.Response]) {
	ended := false
	body.OnEnd(func() {
		ended = true
	})
	body.OnError(func(err error) {
		result.Reject(&protocol.RequestBodyError{Cause: err})
		stream.Close()
	})
	body.OnClose(func() {
		if !ended {
			result.Reject(protocol.ErrRequestBodyClosedPrematurely)
			stream.Close()
		}
	})

	// listeners above run before the encoder's so body failures are reported as such
	var src nio.ReadableStream = body
	if chunked {
		src = http1.NewChunkedEncoder(body)
	}
	stream.Write(nil)
	nio.Pipe(src, stream, true)
}

// prepare derives the headers the wire needs and reports whether the body is sent chunked.
func prepare(req *protocol.Request, origin nio.Origin) (*protocol.Request, bool) {
	h := req.Header()
	if !h.Has("Host") {
		req = req.WithHeader("Host", hostHeader(origin))
	}
	if u := req.URI(); u.User != nil && !h.Has("Authorization") {
		password, _ := u.User.Password()
		req = req.WithHeader("Authorization", "Basic "+tools.ToBase64(u.User.Username()+":"+password))
	}

	body := req.Body()
	size := int64(0)
	if body != nil {
		size = body.Size()
	}
	if h.Has("Content-Length") {
		return req.WithoutHeader("Transfer-Encoding"), false
	}

	switch {
	case size > 0:
		return req.WithHeader("Content-Length", strconv.FormatInt(size, 10)).WithoutHeader("Transfer-Encoding"), false
	case size == 0 && expectsBody(req.Method()):
		return req.WithHeader("Content-Length", "0").WithoutHeader("Transfer-Encoding"), false
	case size < 0 && readable(body):
		return req.WithHeader("Transfer-Encoding", "chunked"), true
	}
	return req.WithoutHeader("Transfer-Encoding"), false
}

// readable reports whether body is a streaming body that still has data to send.
func readable(body protocol.Body) bool {
	b, ok := body.(protocol.StreamingBody)
	return ok && b.IsReadable()
}

func expectsBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func hostHeader(o nio.Origin) string {
	if o.DefaultPort() {
		if strings.Contains(o.Host, ":") {
			return "[" + o.Host + "]"
		}
		return o.Host
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}
