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
package nio

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/safego"
)

const (
	DefaultHighWater = 64 * 1024
	readBufferSize   = 64 * 1024
)

// Conn adapts a net.Conn to a DuplexStream living on an event loop.
//
// A reader goroutine reads one chunk at a time and waits until the loop has
// delivered it before reading again, so a paused Conn holds at most one chunk.
// Writes are queued for a writer goroutine; Write reports backpressure once the
// queued bytes reach the high-water mark and drain follows when they fall below.
type Conn struct {
	Emitter
	loop      *EventLoop
	conn      net.Conn
	logger    logger.ILog
	highWater int

	readable bool
	writable bool
	closed   bool
	paused   bool
	awaiting bool
	held     []func()

	queued    int
	needDrain bool

	gate chan struct{}
	done chan struct{}

	wlock   sync.Mutex
	wqueue  [][]byte
	wnotify chan struct{}
}

// NewConn must be called on the loop. It starts the I/O goroutines.
func NewConn(loop *EventLoop, conn net.Conn, highWater int, log logger.ILog) *Conn {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	if log == nil {
		log = logger.DefaultLogger()
	}
	c := &Conn{
		loop:      loop,
		conn:      conn,
		logger:    log,
		highWater: highWater,
		readable:  true,
		writable:  true,
		gate:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		wnotify:   make(chan struct{}, 1),
	}

	safego.Go(c.readLoop)
	safego.Go(c.writeLoop)
	return c
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) IsReadable() bool {
	return c.readable
}

func (c *Conn) IsWritable() bool {
	return c.writable
}

func (c *Conn) Pause() {
	if c.readable {
		c.paused = true
	}
}

func (c *Conn) Resume() {
	if !c.paused {
		return
	}
	c.paused = false
	for len(c.held) > 0 && !c.paused && !c.closed {
		ev := c.held[0]
		c.held = c.held[1:]
		ev()
	}
	c.grant()
}

func (c *Conn) Write(p []byte) bool {
	if !c.writable {
		return false
	}
	if len(p) == 0 {
		return c.queued < c.highWater
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	c.queued += len(buf)
	c.enqueue(buf)

	if c.queued >= c.highWater {
		c.needDrain = true
		return false
	}
	return true
}

// End flushes the queued bytes and then closes the connection.
func (c *Conn) End(p []byte) {
	if !c.writable {
		return
	}
	if len(p) > 0 {
		c.Write(p)
	}
	c.writable = false
	c.readable = false
	c.paused = false
	c.held = nil
	c.enqueue(nil)
}

func (c *Conn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.readable = false
	c.writable = false
	c.held = nil

	close(c.done)
	_ = c.conn.Close()

	c.EmitClose()
	c.RemoveAllListeners()
}

func (c *Conn) deliver(ev func()) {
	if c.paused {
		c.held = append(c.held, ev)
		return
	}
	ev()
}

// grant lets the reader goroutine fetch the next chunk.
func (c *Conn) grant() {
	if c.awaiting && !c.paused && !c.closed && len(c.held) == 0 {
		c.awaiting = false
		select {
		case c.gate <- struct{}{}:
		default:
		}
	}
}

func (c *Conn) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			p := make([]byte, n)
			copy(p, buf[:n])
			c.loop.Post(func() { c.onRead(p) })

			select {
			case <-c.gate:
			case <-c.done:
				return
			}
		}
		if err != nil {
			c.loop.Post(func() { c.onReadError(err) })
			return
		}
	}
}

func (c *Conn) onRead(p []byte) {
	if c.closed {
		return
	}
	c.awaiting = true
	c.deliver(func() {
		if c.readable {
			c.EmitData(p)
		}
	})
	c.grant()
}

func (c *Conn) onReadError(err error) {
	if c.closed {
		return
	}
	c.deliver(func() {
		if c.closed {
			return
		}
		if errors.Is(err, io.EOF) {
			if c.readable {
				c.readable = false
				c.EmitEnd()
			}
			c.Close()
			return
		}
		if errors.Is(err, net.ErrClosed) {
			c.Close()
			return
		}
		c.logger.Debug("[conn] read %s failed. Error: %s", c.conn.RemoteAddr(), err)
		c.EmitError(err)
		c.Close()
	})
}

func (c *Conn) enqueue(p []byte) {
	c.wlock.Lock()
	c.wqueue = append(c.wqueue, p)
	c.wlock.Unlock()

	select {
	case c.wnotify <- struct{}{}:
	default:
	}
}

// writeLoop drains the queue. A nil chunk marks End.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.wnotify:
		case <-c.done:
			return
		}

		for {
			c.wlock.Lock()
			batch := c.wqueue
			c.wqueue = nil
			c.wlock.Unlock()
			if len(batch) == 0 {
				break
			}

			for _, p := range batch {
				if p == nil {
					c.loop.Post(c.Close)
					return
				}
				n, err := c.conn.Write(p)
				if err != nil {
					c.loop.Post(func() { c.onWriteError(err) })
					return
				}
				c.loop.Post(func() { c.onWritten(n) })
			}
		}
	}
}

func (c *Conn) onWritten(n int) {
	c.queued -= n
	if c.needDrain && c.queued < c.highWater && c.writable {
		c.needDrain = false
		c.EmitDrain()
	}
}

func (c *Conn) onWriteError(err error) {
	if c.closed {
		return
	}
	if !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("[conn] write %s failed. Error: %s", c.conn.RemoteAddr(), err)
		c.EmitError(err)
	}
	c.Close()
}
