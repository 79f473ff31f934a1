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
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/nio"
)

const DefaultIdleTimeout = 60 * time.Second

// pooled is the pool slot of an origin. conn is nil while the first connect is in flight.
type pooled struct {
	conn  nio.DuplexStream
	busy  bool
	since time.Time
	timer nio.Timer
	unsub []nio.Unsubscribe
}

// ConnectionManager keeps at most one keep-alive connection per origin. A connection is
// handed out by Acquire and comes back through Release. An Acquire for an origin whose
// connection is busy opens an extra connection that only enters the pool if the slot is
// free when it is released.
//
// All methods must be called on the loop.
type ConnectionManager struct {
	connector   nio.Connector
	scheduler   nio.Scheduler
	idleTimeout time.Duration
	logger      logger.ILog
	metric      *poolMetric
	now         func() time.Time

	pool   map[nio.Origin]*pooled
	closed bool
}

func NewConnectionManager(connector nio.Connector, scheduler nio.Scheduler, idleTimeout time.Duration) *ConnectionManager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &ConnectionManager{
		connector:   connector,
		scheduler:   scheduler,
		idleTimeout: idleTimeout,
		logger:      logger.DefaultLogger(),
		now:         time.Now,
		pool:        make(map[nio.Origin]*pooled),
	}
}

// Acquire returns the idle pooled connection of origin or connects a new one.
// Cancelling the returned future cancels the connect; a connection arriving after
// that is closed.
func (m *ConnectionManager) Acquire(origin nio.Origin) *future.Future[nio.DuplexStream] {
	p := m.pool[origin]
	if p != nil && !p.busy {
		m.detach(p)
		p.busy = true
		m.metric.inc(origin.String(), eventReuse)
		m.metric.setIdle(m.IdleCount())
		m.logger.Trace("[pool] reuse connection to %s idle for %s.", origin, m.now().Sub(p.since))
		return future.Resolved(p.conn)
	}

	var slot *pooled
	if p == nil && !m.closed {
		slot = &pooled{busy: true}
		m.pool[origin] = slot
	}

	connecting := m.connector.Connect(origin)
	result := future.New[nio.DuplexStream](connecting.Cancel)
	connecting.Then(func(conn nio.DuplexStream, err error) {
		if err != nil {
			m.vacate(origin, slot)
			if !errors.Is(err, future.ErrCancelled) {
				m.metric.inc(origin.String(), eventFailed)
			}
			result.Reject(err)
			return
		}
		if !result.Pending() {
			m.vacate(origin, slot)
			conn.Close()
			return
		}
		if slot != nil && m.pool[origin] == slot {
			slot.conn = conn
		}
		m.metric.inc(origin.String(), eventConnect)
		result.Resolve(conn)
	})
	return result
}

// Release returns conn after an exchange with origin. It is pooled only when keepAlive is
// set and the transport is still open; otherwise it is closed.
func (m *ConnectionManager) Release(origin nio.Origin, conn nio.DuplexStream, keepAlive bool) {
	p := m.pool[origin]
	owned := p != nil && p.conn == conn

	if !keepAlive || m.closed || !conn.IsReadable() || !conn.IsWritable() {
		if owned {
			delete(m.pool, origin)
		}
		conn.Close()
		return
	}

	if !owned {
		if p != nil {
			// slot taken by another connection
			conn.Close()
			return
		}
		p = &pooled{conn: conn}
		m.pool[origin] = p
	}

	p.busy = false
	p.since = m.now()
	evict := func() {
		m.evict(origin, p)
	}
	p.unsub = append(p.unsub,
		conn.OnData(func([]byte) { evict() }),
		conn.OnError(func(error) { evict() }),
		conn.OnClose(evict),
	)
	p.timer = m.scheduler.AddTimer(m.idleTimeout, evict)
	m.metric.setIdle(m.IdleCount())
}

// IdleCount is the number of pooled connections waiting for reuse.
func (m *ConnectionManager) IdleCount() int {
	n := 0
	for _, p := range m.pool {
		if !p.busy {
			n++
		}
	}
	return n
}

// Close closes every idle connection. Busy connections are closed when released.
func (m *ConnectionManager) Close() {
	m.closed = true
	for origin, p := range m.pool {
		delete(m.pool, origin)
		if !p.busy {
			m.detach(p)
			p.conn.Close()
		}
	}
	m.metric.setIdle(0)
}

func (m *ConnectionManager) evict(origin nio.Origin, p *pooled) {
	if m.pool[origin] != p || p.busy {
		return
	}
	delete(m.pool, origin)
	m.detach(p)
	p.conn.Close()
	m.metric.inc(origin.String(), eventEvict)
	m.metric.setIdle(m.IdleCount())
}

func (m *ConnectionManager) vacate(origin nio.Origin, slot *pooled) {
	if slot != nil && m.pool[origin] == slot {
		delete(m.pool, origin)
	}
}

func (m *ConnectionManager) detach(p *pooled) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	for _, off := range p.unsub {
		off()
	}
	p.unsub = nil
}
