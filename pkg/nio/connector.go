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
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/safego"
)

// Connector opens connections. The returned future is cancellable while the connect is in flight.
type Connector interface {
	Connect(origin Origin) *future.Future[DuplexStream]
}

type ConnectError struct {
	Origin Origin
	Cause  error
}

func (e *ConnectError) Error() string {
	return "connection to " + e.Origin.String() + " failed: " + e.Cause.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// TCPConnector dials on a helper goroutine and hands the connection to the loop.
type TCPConnector struct {
	loop      *EventLoop
	logger    logger.ILog
	Timeout   time.Duration
	TLSConfig *tls.Config
	// HighWater is passed to every connection, zero means the default.
	HighWater int
}

func NewTCPConnector(loop *EventLoop, timeout time.Duration, log logger.ILog) *TCPConnector {
	if log == nil {
		log = logger.DefaultLogger()
	}
	return &TCPConnector{loop: loop, logger: log, Timeout: timeout}
}

func (c *TCPConnector) Connect(origin Origin) *future.Future[DuplexStream] {
	ctx, cancel := context.WithCancel(context.Background())
	f := future.New[DuplexStream](cancel)

	safego.Go(func() {
		conn, err := c.dial(ctx, origin)
		c.loop.Post(func() {
			if err != nil {
				if f.Pending() {
					c.logger.Debug("[connector] connect %s failed. Error: %s", origin, err)
				}
				f.Reject(&ConnectError{Origin: origin, Cause: err})
				return
			}
			if !f.Pending() {
				_ = conn.Close()
				return
			}
			f.Resolve(NewConn(c.loop, conn, c.HighWater, c.logger))
		})
	})
	return f
}

func (c *TCPConnector) dial(ctx context.Context, origin Origin) (net.Conn, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", origin.Address())
	if err != nil || !origin.TLS() {
		return conn, err
	}

	cfg := &tls.Config{}
	if c.TLSConfig != nil {
		cfg = c.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = origin.Host
	}
	tlsConn := tls.Client(conn, cfg)
	if err = tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
