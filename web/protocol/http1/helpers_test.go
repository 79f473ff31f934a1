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
	"bytes"
	"time"

	"github.com/caiflower/evhttp/pkg/nio"
)

// source is a readable stream driven by the test. Unlike ThroughStream it keeps its
// listeners after end, so spurious events can be injected.
type source struct {
	nio.Emitter
	paused  int
	resumed int
	closed  int
}

func (s *source) IsReadable() bool { return s.closed == 0 }
func (s *source) Pause()           { s.paused++ }
func (s *source) Resume()          { s.resumed++ }
func (s *source) Close() {
	s.closed++
	if s.closed == 1 {
		s.EmitClose()
	}
}

// fakeConn is an in-memory connection that records what the server writes.
type fakeConn struct {
	nio.Emitter
	out    bytes.Buffer
	ended  bool
	closed bool
	paused bool
}

func (c *fakeConn) IsReadable() bool { return !c.closed }
func (c *fakeConn) IsWritable() bool { return !c.ended && !c.closed }
func (c *fakeConn) Pause()           { c.paused = true }
func (c *fakeConn) Resume()          { c.paused = false }

func (c *fakeConn) Write(p []byte) bool {
	if !c.IsWritable() {
		return false
	}
	c.out.Write(p)
	return true
}

func (c *fakeConn) End(p []byte) {
	if !c.IsWritable() {
		return
	}
	c.Write(p)
	c.ended = true
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

// take returns and clears the bytes written so far.
func (c *fakeConn) take() string {
	s := c.out.String()
	c.out.Reset()
	return s
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
