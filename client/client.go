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
	"context"
	"errors"
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/logger"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/cenkalti/backoff/v4"
)

const closeWait = 5 * time.Second

// Client sends requests from any goroutine through a Sender that runs on loop.
type Client struct {
	config      Config
	loop        *nio.EventLoop
	sender      *Sender
	maxResponse int64
	logger      logger.ILog
}

// New wires a ConnectionManager and a Sender on loop. A nil connector dials TCP.
func New(cfg Config, loop *nio.EventLoop, connector nio.Connector) (*Client, error) {
	maxResponse, highWater, err := cfg.sizes()
	if err != nil {
		return nil, err
	}

	log := logger.DefaultLogger()
	if connector == nil {
		tcp := nio.NewTCPConnector(loop, cfg.ConnectTimeout, log)
		tcp.HighWater = highWater
		connector = tcp
	}
	manager := NewConnectionManager(connector, loop, cfg.IdleTimeout)
	if cfg.EnableMetrics {
		manager.metric = newPoolMetric(nil)
	}

	return &Client{
		config:      cfg,
		loop:        loop,
		sender:      NewSender(manager),
		maxResponse: maxResponse,
		logger:      log,
	}, nil
}

// Send resolves with the response head and a streaming body. It must be called on the loop.
func (c *Client) Send(req *protocol.Request) *future.Future[*protocol.Response] {
	return c.sender.Send(req)
}

// Do sends req and waits for the whole response, buffered in memory. Failed connects
// are retried with exponential backoff unless retries are disabled or the request
// body is a stream.
func (c *Client) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var res *protocol.Response
	fn := func() error {
		var err error
		res, err = future.Await(ctx, c.loop, func() *future.Future[*protocol.Response] {
			return future.Chain(c.sender.Send(req), func(res *protocol.Response) *future.Future[*protocol.Response] {
				return BufferResponse(res, c.maxResponse, c.config.DecodeContent)
			})
		})
		var connectErr *nio.ConnectError
		if err != nil && errors.As(err, &connectErr) {
			c.logger.Warn("[client] %s %s failed. Error: %s", req.Method(), req.URI().Redacted(), err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	retries := c.config.MaxRetries
	if c.config.DisableRetry || retries < 0 || protocol.IsStreaming(req.Body()) && req.Body().Size() != 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	if err := backoff.Retry(fn, b); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the idle pooled connections and waits for the loop to do so.
func (c *Client) Close() {
	if c.loop.InLoop() {
		c.sender.manager.Close()
		return
	}
	done := make(chan struct{})
	c.loop.Post(func() {
		c.sender.manager.Close()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(closeWait):
		c.logger.Warn("[client] timed out closing pooled connections.")
	}
}
