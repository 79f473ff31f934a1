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
	"errors"
	"net/http"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/caiflower/evhttp/web/protocol/http1"
)

var (
	ErrConnectionClosed = errors.New("connection closed before receiving response")
	ErrRequestClosed    = errors.New("request closed before receiving response")
)

type streamState int

const (
	stateInit streamState = iota
	stateConnecting
	stateWriting
	stateReceiving
	stateClosed
)

// ClientRequestStream is one request/response exchange on a connection from the
// ConnectionManager. Writes before the connection is established are buffered and
// reported as backpressure; drain follows once they are flushed.
//
// Response resolves with the response head. Its body is a stream bounded by the
// response framing; the connection goes back to the pool once the body ended.
type ClientRequestStream struct {
	nio.Emitter
	manager *ConnectionManager
	origin  nio.Origin
	req     *protocol.Request

	state   streamState
	ended   bool
	pending []byte

	connecting *future.Future[nio.DuplexStream]
	conn       nio.DuplexStream
	unsub      []nio.Unsubscribe

	reader    *http1.HeadReader
	response  *future.Future[*protocol.Response]
	body      *nio.Relay
	keepAlive bool
	// excess reports bytes the server sent past the end of the response
	excess func() int64
}

func NewClientRequestStream(manager *ConnectionManager, origin nio.Origin, req *protocol.Request) *ClientRequestStream {
	return &ClientRequestStream{
		manager:  manager,
		origin:   origin,
		req:      req,
		reader:   http1.NewHeadReader(http1.DefaultMaxHeadSize),
		response: future.New[*protocol.Response](nil),
	}
}

// Response settles with the response head, or with the error that ended the exchange.
func (s *ClientRequestStream) Response() *future.Future[*protocol.Response] {
	return s.response
}

func (s *ClientRequestStream) IsWritable() bool {
	return s.state != stateClosed && !s.ended
}

func (s *ClientRequestStream) Write(p []byte) bool {
	if !s.IsWritable() {
		return false
	}
	if s.conn != nil {
		return len(p) == 0 || s.conn.Write(p)
	}

	s.pending = append(s.pending, p...)
	if s.state == stateInit {
		s.connect()
	}
	return s.conn != nil
}

// End finishes the request. The connection itself stays open for the response.
func (s *ClientRequestStream) End(p []byte) {
	if !s.IsWritable() {
		return
	}
	s.Write(p)
	s.ended = true
}

func (s *ClientRequestStream) Close() {
	s.abort(ErrRequestClosed)
}

func (s *ClientRequestStream) connect() {
	s.state = stateConnecting
	s.connecting = s.manager.Acquire(s.origin)
	s.connecting.Then(func(conn nio.DuplexStream, err error) {
		s.connecting = nil
		if err != nil {
			s.abort(err)
			return
		}
		if s.state == stateClosed {
			s.manager.Release(s.origin, conn, false)
			return
		}
		s.attach(conn)
	})
}

func (s *ClientRequestStream) attach(conn nio.DuplexStream) {
	s.conn = conn
	s.state = stateWriting
	s.unsub = append(s.unsub,
		conn.OnData(s.onData),
		conn.OnEnd(s.onEnd),
		conn.OnError(s.onError),
		conn.OnClose(s.onEnd),
		conn.OnDrain(s.EmitDrain),
	)

	head := http1.AppendRequestHead(nil, s.req)
	head = append(head, s.pending...)
	s.pending = nil
	if conn.Write(head) {
		s.EmitDrain()
	}
}

func (s *ClientRequestStream) onData(p []byte) {
	if s.body != nil {
		s.body.Push(p)
		return
	}
	if s.state == stateReceiving {
		return
	}

	head, rest, err := s.reader.Feed(p)
	if err != nil {
		s.abort(err)
		return
	}
	if head == nil {
		return
	}
	res, err := http1.ParseResponseHead(head)
	if err != nil {
		s.abort(err)
		return
	}
	if code := res.StatusCode(); code < 200 && code != http.StatusSwitchingProtocols {
		if len(rest) > 0 {
			s.onData(rest)
		}
		return
	}
	s.receive(res, rest)
}

func (s *ClientRequestStream) receive(res *protocol.Response, rest []byte) {
	framing, length, err := http1.ResponseFraming(s.req.Method(), res)
	if err != nil {
		s.abort(err)
		return
	}
	s.state = stateReceiving
	s.keepAlive = framing != http1.CloseDelimited &&
		s.req.ProtocolVersion() == protocol.Version11 && !s.req.Header().HasToken("Connection", "close") &&
		res.ProtocolVersion() == protocol.Version11 && !res.Header().HasToken("Connection", "close")

	if framing == http1.NoBody {
		s.keepAlive = s.keepAlive && len(rest) == 0
		s.response.Resolve(res.WithBody(protocol.NewEmptyBody()))
		s.finish()
		return
	}

	s.body = nio.NewRelay(s.conn)
	var input nio.ReadableStream = s.body
	if framing == http1.Chunked {
		decoder := http1.NewChunkedDecoder(s.body)
		input, s.excess = decoder, decoder.Excess
	}
	body := protocol.NewBodyStream(input, length)
	if s.excess == nil {
		s.excess = body.Excess
	}

	completed := false
	body.OnEnd(func() {
		completed = true
	})
	body.OnClose(func() {
		if completed {
			s.finish()
		} else {
			s.abort(ErrRequestClosed)
		}
	})

	s.response.Resolve(res.WithBody(body))
	if len(rest) > 0 {
		s.onData(rest)
	}
}

// finish hands the connection back once the response completed.
func (s *ClientRequestStream) finish() {
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed
	s.body = nil
	// no pipelining: anything after the response is a protocol violation
	clean := s.excess == nil || s.excess() == 0
	s.release(s.keepAlive && s.ended && clean)
	s.EmitClose()
	s.RemoveAllListeners()
}

func (s *ClientRequestStream) onEnd() {
	if s.body != nil {
		s.body.Finish()
		return
	}
	s.abort(ErrConnectionClosed)
}

func (s *ClientRequestStream) onError(err error) {
	if s.body != nil {
		s.body.Fail(err)
		return
	}
	s.abort(err)
}

// abort ends the exchange without reuse of the connection.
func (s *ClientRequestStream) abort(err error) {
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed
	s.pending = nil
	if s.connecting != nil {
		s.connecting.Cancel()
		s.connecting = nil
	}
	if s.conn != nil {
		s.release(false)
	}
	if body := s.body; body != nil {
		s.body = nil
		body.Fail(err)
	}
	if s.response.Reject(err) {
		s.EmitError(err)
	}
	s.EmitClose()
	s.RemoveAllListeners()
}

func (s *ClientRequestStream) release(keepAlive bool) {
	for _, off := range s.unsub {
		off()
	}
	s.unsub = nil
	conn := s.conn
	s.conn = nil
	s.manager.Release(s.origin, conn, keepAlive)
}
