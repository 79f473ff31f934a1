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
	"bytes"
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/nio"
)

// fakeConn is an in-memory connection that records what the client writes.
type fakeConn struct {
	nio.Emitter
	out    bytes.Buffer
	closed bool
	paused bool
	// full makes writes report backpressure
	full bool
}

func (c *fakeConn) IsReadable() bool { return !c.closed }
func (c *fakeConn) IsWritable() bool { return !c.closed }
func (c *fakeConn) Pause()           { c.paused = true }
func (c *fakeConn) Resume()          { c.paused = false }

func (c *fakeConn) Write(p []byte) bool {
	if c.closed {
		return false
	}
	c.out.Write(p)
	return !c.full
}

func (c *fakeConn) End(p []byte) {
	c.Write(p)
	c.Close()
}

func (c *fakeConn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.EmitClose()
	c.RemoveAllListeners()
}

func (c *fakeConn) send(s string) {
	c.EmitData([]byte(s))
}

// hangup is the server closing its side.
func (c *fakeConn) hangup() {
	c.EmitEnd()
	c.Close()
}

func (c *fakeConn) take() string {
	s := c.out.String()
	c.out.Reset()
	return s
}

// fakeConnector hands out pending connects that the test settles.
type fakeConnector struct {
	origins   []nio.Origin
	pending   []*future.Future[nio.DuplexStream]
	cancelled int
	// auto resolves every connect with a new fakeConn right away
	auto  bool
	conns []*fakeConn
}

func (c *fakeConnector) Connect(origin nio.Origin) *future.Future[nio.DuplexStream] {
	c.origins = append(c.origins, origin)
	if c.auto {
		conn := &fakeConn{}
		c.conns = append(c.conns, conn)
		return future.Resolved[nio.DuplexStream](conn)
	}
	f := future.New[nio.DuplexStream](func() {
		c.cancelled++
	})
	c.pending = append(c.pending, f)
	return f
}

// resolve settles the oldest connect still pending with a new fakeConn.
func (c *fakeConnector) resolve() *fakeConn {
	conn := &fakeConn{}
	c.conns = append(c.conns, conn)
	for len(c.pending) > 0 {
		f := c.pending[0]
		c.pending = c.pending[1:]
		if f.Resolve(conn) {
			break
		}
	}
	return conn
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) AddTimer(_ time.Duration, fn func()) nio.Timer {
	t := &manualTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) fire() {
	timers := s.timers
	s.timers = nil
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.fn()
		}
	}
}

// streamBody is a request body driven by the test. It keeps its listeners after end.
type streamBody struct {
	nio.Emitter
	size    int64
	closed  bool
	paused  int
	resumed int
}

func (b *streamBody) Size() int64      { return b.size }
func (b *streamBody) IsReadable() bool { return !b.closed }
func (b *streamBody) Pause()           { b.paused++ }
func (b *streamBody) Resume()          { b.resumed++ }
func (b *streamBody) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.EmitClose()
}
