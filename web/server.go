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
package web

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/middleware"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/caiflower/evhttp/web/protocol/http1"
	"github.com/dustin/go-humanize"
)

const closeWait = 5 * time.Second

// HttpServer serves a middleware chain over HTTP/1.x on a single event loop.
type HttpServer struct {
	config Config
	logger logger.ILog

	loop     *nio.EventLoop
	listener *nio.Listener
	server   *http1.Server
	runner   *middleware.Runner
	limit    *middleware.ConcurrencyLimit

	closeOnce sync.Once
}

// NewHttpServer builds the request chain for cfg in front of handlers.
//
// Unless handlers carry a middleware.StreamingRequest marker, request bodies are buffered
// up to the derived body limit, and the number of requests buffering at once is capped so
// that buffered bodies fit in half of the memory limit.
func NewHttpServer(cfg Config, handlers ...middleware.Middleware) (*HttpServer, error) {
	l, err := cfg.limits()
	if err != nil {
		return nil, err
	}

	s := &HttpServer{config: cfg, logger: logger.DefaultLogger()}
	s.loop = nio.NewEventLoop("http-"+cfg.Name, s.logger)

	streaming := false
	for _, h := range handlers {
		if middleware.IsStreamingRequest(h) {
			streaming = true
			break
		}
	}

	var stages []middleware.Middleware
	if !streaming && l.concurrency != Unlimited {
		s.limit = middleware.LimitConcurrentRequests(l.concurrency)
	}
	if cfg.EnableMetrics {
		stages = append(stages, NewHttpMetric(nil).Middleware(cfg.Name, s.limit))
	}
	stages = append(stages, middleware.RequestID(cfg.HeaderTraceID))
	if cfg.Compression.Enable {
		stages = append(stages, middleware.Compress(l.compressMin))
	}
	if cfg.WebLimiter.Enable {
		stages = append(stages, middleware.RateLimit(cfg.WebLimiter.Qps, cfg.WebLimiter.Burst))
	}
	if !streaming {
		if s.limit != nil {
			stages = append(stages, s.limit)
		}
		stages = append(stages, middleware.RequestBodyBuffer(l.maxBody))
	}
	stages = append(stages, handlers...)
	s.runner = middleware.NewRunner(stages...)

	s.server = http1.NewServer(s.runner.Handle, http1.Options{
		MaxHeadSize: l.maxHead,
		IdleTimeout: cfg.KeepAliveTimeout,
		Scheduler:   s.loop,
		Logger:      s.logger,
	})
	s.server.OnError(func(err error) {
		s.logger.Warn("[web] %s request failed. Error: %s", cfg.Name, err)
	})

	s.listener = nio.NewListener(cfg.Addr, s.loop, l.highWater, s.logger)
	s.listener.OnConnection = func(conn *nio.Conn) {
		s.server.Serve(conn)
	}

	if streaming {
		s.logger.Info("[web] %s streams request bodies, %d stages.", cfg.Name, s.runner.Len())
	} else if l.concurrency == Unlimited {
		s.logger.Info("[web] %s buffers request bodies up to %s without a concurrency limit, %d stages.",
			cfg.Name, humanize.IBytes(uint64(l.maxBody)), s.runner.Len())
	} else {
		s.logger.Info("[web] %s buffers request bodies up to %s for at most %s concurrent requests, %d stages.",
			cfg.Name, humanize.IBytes(uint64(l.maxBody)), humanize.Comma(int64(l.concurrency)), s.runner.Len())
	}
	return s, nil
}

func (s *HttpServer) Name() string {
	return "HTTP:" + s.config.Name
}

// Start runs the loop and opens the listener.
func (s *HttpServer) Start() error {
	if err := s.loop.Start(); err != nil {
		return err
	}
	if err := s.listener.Open(); err != nil {
		s.loop.Close()
		return fmt.Errorf("web server %s: %w", s.config.Name, err)
	}
	return nil
}

// Close stops accepting, closes every open connection and stops the loop.
func (s *HttpServer) Close() {
	s.closeOnce.Do(func() {
		s.listener.Close()

		// connections are closed by a task already queued on the loop
		done := make(chan struct{})
		s.loop.Post(func() { close(done) })
		select {
		case <-done:
		case <-time.After(closeWait):
			s.logger.Warn("[web] %s timed out closing connections.", s.config.Name)
		}
		s.loop.Close()
	})
}

// Addr is the bound address once started.
func (s *HttpServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *HttpServer) Loop() *nio.EventLoop {
	return s.loop
}

// OnError registers fn for malformed requests and failed handlers.
func (s *HttpServer) OnError(fn func(err error)) {
	s.server.OnError(fn)
}

// Handle runs req through the chain. It must be called on the loop.
func (s *HttpServer) Handle(req *protocol.Request) *future.Future[*protocol.Response] {
	return s.runner.Handle(req)
}

// Limit is the concurrency admission stage, nil when requests are not limited.
func (s *HttpServer) Limit() *middleware.ConcurrencyLimit {
	return s.limit
}
