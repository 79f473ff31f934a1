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
package http1

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	crash "github.com/caiflower/evhttp/pkg/e"
	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/nio"
	apierr "github.com/caiflower/evhttp/web/e"
	"github.com/caiflower/evhttp/web/protocol"
)

const (
	DefaultServerName = "caiflower"

	AttrRemoteAddr = "remote_addr"
	AttrLocalAddr  = "local_addr"
)

// Handler produces the response to a request. It is called on the event loop.
type Handler func(req *protocol.Request) *future.Future[*protocol.Response]

type Options struct {
	MaxHeadSize int
	// ServerName is sent as the Server header unless the response sets one. "-" disables it.
	ServerName string
	// IdleTimeout closes a keep-alive connection that sends no new request in time. Zero disables it.
	IdleTimeout time.Duration
	Scheduler   nio.Scheduler
	TLS         bool
	Logger      logger.ILog
	Now         func() time.Time
}

// Server speaks HTTP/1.x on connections handed to Serve, one request at a time per connection.
type Server struct {
	handler Handler
	opts    Options
	logger  logger.ILog
	onError []func(err error)
}

func NewServer(handler Handler, opts Options) *Server {
	if opts.ServerName == "" {
		opts.ServerName = DefaultServerName
	}
	if opts.Logger == nil {
		opts.Logger = logger.DefaultLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{handler: handler, opts: opts, logger: opts.Logger}
}

// OnError registers fn for malformed requests and failed handlers.
func (s *Server) OnError(fn func(err error)) {
	s.onError = append(s.onError, fn)
}

func (s *Server) emitError(err error) {
	for _, fn := range s.onError {
		fn(err)
	}
}

// Serve takes ownership of conn. It must be called on the loop that drives conn.
func (s *Server) Serve(conn nio.DuplexStream) {
	c := &connection{server: s, conn: conn, reader: NewHeadReader(s.opts.MaxHeadSize)}
	if a, ok := conn.(interface {
		RemoteAddr() net.Addr
		LocalAddr() net.Addr
	}); ok {
		c.remote, c.local = a.RemoteAddr().String(), a.LocalAddr().String()
	}

	conn.OnData(c.onData)
	conn.OnEnd(c.onEnd)
	conn.OnClose(c.onClose)
	conn.OnError(func(err error) {
		s.logger.Debug("[http1] connection %s failed. Error: %s", c.remote, err)
	})
}

type connState int

const (
	readingHead connState = iota
	readingBody
	responding
	closed
)

type connection struct {
	server *Server
	conn   nio.DuplexStream
	reader *HeadReader
	remote string
	local  string

	state     connState
	served    int
	idle      nio.Timer
	relay     *nio.Relay
	bodyDone  bool
	bodyEnded bool
	pending   []byte
}

func (c *connection) onData(p []byte) {
	switch c.state {
	case readingHead:
		c.stopIdle()
		c.feedHead(p)
	case readingBody:
		c.relay.Push(p)
	case responding:
		c.pending = append(c.pending, p...)
		c.conn.Pause()
	}
}

func (c *connection) onEnd() {
	if c.state == readingBody {
		c.relay.Finish()
	}
}

func (c *connection) onClose() {
	c.state = closed
	c.stopIdle()
	if c.relay != nil {
		c.relay.Close()
	}
}

func (c *connection) feedHead(p []byte) {
	head, rest, err := c.reader.Feed(p)
	if err != nil {
		c.fail(err)
		return
	}
	if head == nil {
		return
	}

	req, err := ParseRequestHead(head, c.server.opts.TLS)
	if err != nil {
		c.fail(err)
		return
	}
	if req.URI().Host == "" && c.local != "" {
		u := *req.URI()
		u.Host = c.local
		req = req.WithURI(&u).WithTarget(req.Target())
	}
	req = req.WithAttribute(AttrRemoteAddr, c.remote).WithAttribute(AttrLocalAddr, c.local)
	c.served++

	framing, length := RequestFraming(req.Header())
	var body protocol.Body
	switch framing {
	case Chunked:
		c.relay = nio.NewRelay(c.conn)
		body = protocol.NewBodyStream(NewChunkedDecoder(c.relay), -1)
	case LengthDelimited:
		c.relay = nio.NewRelay(c.conn)
		body = protocol.NewBodyStream(c.relay, length)
	default:
		c.relay = nil
		body = protocol.NewEmptyBody()
	}

	if c.relay != nil {
		c.state = readingBody
		c.bodyDone, c.bodyEnded = false, false
		stream := body.(protocol.StreamingBody)
		stream.OnEnd(func() {
			c.bodyEnded = true
			c.onBodyDone()
		})
		stream.OnClose(c.onBodyDone)
		if req.ProtocolVersion() == protocol.Version11 && req.Header().HasToken("Expect", "100-continue") {
			c.conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
		}
	} else {
		c.state = responding
		c.bodyDone, c.bodyEnded = true, true
	}

	req = req.WithBody(body)
	c.handle(req)

	if len(rest) > 0 && c.state != closed {
		c.onData(rest)
	}
}

// onBodyDone stops routing connection data into the request body.
// A body closed before its end leaves unread bytes behind, so the connection is not reused.
func (c *connection) onBodyDone() {
	if c.bodyDone {
		return
	}
	c.bodyDone = true
	if c.state == readingBody {
		c.state = responding
	}
}

func (c *connection) handle(req *protocol.Request) {
	s := c.server

	result := c.invoke(req)
	result.Then(func(res *protocol.Response, err error) {
		if c.state == closed {
			return
		}
		if err != nil {
			herr, ok := err.(*protocol.HandlerError)
			if !ok {
				herr = &protocol.HandlerError{Cause: err}
			}
			s.logger.Error("[http1] handle %s %s failed. Error: %s", req.Method(), req.Target(), err)
			s.emitError(herr)
			res = errorResponse(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		if res == nil {
			res = errorResponse(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		c.respond(req, res)
	})
}

func (c *connection) invoke(req *protocol.Request) (result *future.Future[*protocol.Response]) {
	defer crash.OnErrorFunc(func(err error) {
		result = future.Rejected[*protocol.Response](&protocol.HandlerError{Cause: err})
	})
	result = c.server.handler(req)
	if result == nil {
		result = future.Rejected[*protocol.Response](fmt.Errorf("handler returned no response"))
	}
	return
}

func (c *connection) respond(req *protocol.Request, res *protocol.Response) {
	s := c.server
	method, status := req.Method(), res.StatusCode()
	keepAlive := KeepAlive(req.ProtocolVersion(), req.Header()) && !res.Header().HasToken("Connection", "close")

	res = res.WithProtocolVersion(req.ProtocolVersion())
	if !res.Header().Has("Server") && s.opts.ServerName != "-" {
		res = res.WithHeader("Server", s.opts.ServerName)
	}
	if !res.Header().Has("Date") {
		res = res.WithHeader("Date", s.opts.Now().UTC().Format(http.TimeFormat))
	}

	body := res.Body()
	chunked := false
	res = res.WithoutHeader("Transfer-Encoding")
	switch {
	case status < 200 || status == http.StatusNoContent:
		res = res.WithoutHeader("Content-Length")
	case status == http.StatusNotModified && body.Size() <= 0:
	case body.Size() >= 0:
		res = res.WithHeader("Content-Length", strconv.FormatInt(body.Size(), 10))
	case req.ProtocolVersion() == protocol.Version11:
		res = res.WithoutHeader("Content-Length").WithHeader("Transfer-Encoding", "chunked")
		chunked = true
	default:
		res = res.WithoutHeader("Content-Length")
		keepAlive = false
	}
	if keepAlive && req.ProtocolVersion() == protocol.Version10 {
		res = res.WithHeader("Connection", "keep-alive")
	} else if !keepAlive {
		res = res.WithHeader("Connection", "close")
	}

	c.conn.Write(AppendResponseHead(nil, res))

	stream, streaming := body.(protocol.StreamingBody)
	if !ResponseHasBody(method, status) {
		if streaming {
			stream.Close()
		}
		c.finish(keepAlive)
		return
	}
	if !streaming {
		if b, ok := body.(interface{ Bytes() []byte }); ok && len(b.Bytes()) > 0 {
			c.conn.Write(b.Bytes())
		}
		c.finish(keepAlive)
		return
	}

	var src nio.ReadableStream = stream
	if chunked {
		src = NewChunkedEncoder(stream)
	}
	ended := false
	offConnClose := c.conn.OnClose(src.Close)
	src.OnEnd(func() {
		ended = true
		c.finish(keepAlive)
	})
	src.OnError(func(err error) {
		s.logger.Error("[http1] response body of %s %s failed. Error: %s", method, req.Target(), err)
	})
	src.OnClose(func() {
		offConnClose()
		if !ended {
			c.conn.Close()
		}
	})
	nio.Pipe(src, c.conn, false)
}

// finish prepares the connection for the next request or closes it.
func (c *connection) finish(keepAlive bool) {
	if c.state == closed {
		return
	}
	if !keepAlive || !c.bodyEnded {
		c.state = closed
		c.conn.End(nil)
		return
	}

	c.state = readingHead
	c.relay = nil
	c.startIdle()
	if pending := c.pending; len(pending) > 0 {
		c.pending = nil
		c.onData(pending)
	}
	c.conn.Resume()
}

func (c *connection) startIdle() {
	s := c.server
	if s.opts.IdleTimeout <= 0 || s.opts.Scheduler == nil || c.reader.Buffered() > 0 {
		return
	}
	c.idle = s.opts.Scheduler.AddTimer(s.opts.IdleTimeout, func() {
		c.idle = nil
		if c.state == readingHead && c.reader.Buffered() == 0 {
			s.logger.Debug("[http1] close idle connection %s after %d requests", c.remote, c.served)
			c.conn.Close()
		}
	})
}

func (c *connection) stopIdle() {
	if c.idle != nil {
		c.idle.Stop()
		c.idle = nil
	}
}

// fail answers a malformed request head and closes the connection.
func (c *connection) fail(err error) {
	status, reason := http.StatusBadRequest, err.Error()
	if perr, ok := err.(*ProtocolError); ok {
		status, reason = perr.Status, perr.Reason
	}
	c.server.logger.Warn("[http1] invalid request from %s. Error: %s", c.remote, err)
	c.server.emitError(err)

	res := errorResponse(status, reason).
		WithHeader("Connection", "close").
		WithHeader("Date", c.server.opts.Now().UTC().Format(http.TimeFormat))
	if c.server.opts.ServerName != "-" {
		res = res.WithHeader("Server", c.server.opts.ServerName)
	}
	b := res.Body().(*protocol.BufferedBody)
	res = res.WithHeader("Content-Length", strconv.FormatInt(b.Size(), 10))

	c.state = closed
	c.conn.Write(AppendResponseHead(nil, res))
	c.conn.End(b.Bytes())
}

func errorResponse(status int, reason string) *protocol.Response {
	return apierr.Response(apierr.NewApiError(apierr.CodeOf(status), reason, nil))
}
