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
	"net"
	"sync"
	"sync/atomic"

	"github.com/caiflower/evhttp/pkg/e"
	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/syncx"
)

// Listener accepts TCP connections and hands each one to OnConnection on the loop.
type Listener struct {
	addr      string
	loop      *EventLoop
	logger    logger.ILog
	highWater int

	lock           sync.Locker
	acceptor       net.Listener
	closed         int32
	buildSessionID int64
	sessions       map[int64]*Conn

	OnConnection func(conn *Conn)
}

func NewListener(addr string, loop *EventLoop, highWater int, log logger.ILog) *Listener {
	if log == nil {
		log = logger.DefaultLogger()
	}
	return &Listener{
		addr:      addr,
		loop:      loop,
		logger:    log,
		highWater: highWater,
		lock:      syncx.NewSpinLock(),
		sessions:  make(map[int64]*Conn),
		closed:    1,
	}
}

func (s *Listener) Open() error {
	s.logger.Info("[listener] Open socket %s acceptor and listening...", s.addr)

	listen, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error("[listener] Open socket %s err: %s .", s.addr, err.Error())
		return err
	}

	s.acceptor = listen
	atomic.StoreInt32(&s.closed, 0)
	s.logger.Info("[listener] Open socket %s success. ", listen.Addr())

	go s.accept()
	return nil
}

// Addr is the bound address, valid after Open.
func (s *Listener) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

func (s *Listener) accept() {
	golocalv1.PutTraceID("listener.accept")
	defer golocalv1.Clean()
	defer e.OnError("listener.accept")

	for {
		conn, err := s.acceptor.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || atomic.LoadInt32(&s.closed) == 1 {
				s.logger.Info("[listener] socket is closed and stop accepting.")
			} else {
				s.logger.Error("[listener] accept client err: %s", err.Error())
			}
			return
		}

		id := atomic.AddInt64(&s.buildSessionID, 1)
		s.loop.Post(func() {
			if atomic.LoadInt32(&s.closed) == 1 {
				_ = conn.Close()
				return
			}
			c := NewConn(s.loop, conn, s.highWater, s.logger)
			s.addSession(id, c)
			c.OnClose(func() {
				s.removeSession(id)
			})
			if s.OnConnection != nil {
				s.OnConnection(c)
			}
		})
	}
}

// Close stops accepting and closes every open connection on the loop.
func (s *Listener) Close() {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return
	}
	s.logger.Info("[listener] Close socket %s acceptor. ", s.addr)
	if err := s.acceptor.Close(); err != nil {
		s.logger.Warn("[listener] Close socket %s err: %s .", s.addr, err.Error())
	}

	s.loop.Post(func() {
		s.lock.Lock()
		sessions := make([]*Conn, 0, len(s.sessions))
		for _, c := range s.sessions {
			sessions = append(sessions, c)
		}
		s.lock.Unlock()

		for _, c := range sessions {
			c.Close()
		}
	})
}

func (s *Listener) addSession(id int64, c *Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sessions[id] = c
}

func (s *Listener) removeSession(id int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, id)
}

func (s *Listener) GetSessionCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}
