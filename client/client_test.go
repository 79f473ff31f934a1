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
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/nio"
	"github.com/caiflower/evhttp/web"
	"github.com/caiflower/evhttp/web/middleware"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConnector struct {
	nio.Connector
	count int32
}

func (c *countingConnector) Connect(origin nio.Origin) *future.Future[nio.DuplexStream] {
	atomic.AddInt32(&c.count, 1)
	return c.Connector.Connect(origin)
}

func (c *countingConnector) connects() int {
	return int(atomic.LoadInt32(&c.count))
}

func startLoopback(t *testing.T) (*web.HttpServer, *Client, *countingConnector) {
	cfg := web.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	server, err := web.NewHttpServer(cfg, middleware.Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		header := protocol.NewHeader("Content-Type", "text/plain")
		if req.URI().Path == "/close" {
			header = header.With("Connection", "close")
		}
		body := protocol.NewBufferedBodyString(req.Method() + " " + req.URI().Path)
		return future.Resolved(protocol.NewResponse(http.StatusOK, header, body))
	}))
	require.Nil(t, err)
	require.Nil(t, server.Start())
	t.Cleanup(server.Close)

	loop := nio.NewEventLoop("client", nil)
	require.Nil(t, loop.Start())
	t.Cleanup(loop.Close)

	connector := &countingConnector{Connector: nio.NewTCPConnector(loop, time.Second, nil)}
	c, err := New(DefaultConfig(), loop, connector)
	require.Nil(t, err)
	return server, c, connector
}

func get(t *testing.T, c *Client, url string) *protocol.Response {
	req, err := protocol.NewRequest(http.MethodGet, url, protocol.Header{}, nil)
	require.Nil(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Do(ctx, req)
	require.Nil(t, err)
	return res
}

func TestClientReusesConnection(t *testing.T) {
	server, c, connector := startLoopback(t)
	base := "http://" + server.Addr().String()

	res := get(t, c, base+"/a")
	assert.Equal(t, http.StatusOK, res.StatusCode())
	assert.Equal(t, "GET /a", bodyOf(t, res))

	res = get(t, c, base+"/b")
	assert.Equal(t, "GET /b", bodyOf(t, res))
	assert.Equal(t, 1, connector.connects())
}

func TestClientServerClosesConnection(t *testing.T) {
	server, c, connector := startLoopback(t)
	base := "http://" + server.Addr().String()

	res := get(t, c, base+"/close")
	assert.Equal(t, "GET /close", bodyOf(t, res))
	assert.Equal(t, 1, connector.connects())

	get(t, c, base+"/a")
	assert.Equal(t, 2, connector.connects())
}

func TestClientRetriesConnect(t *testing.T) {
	loop := nio.NewEventLoop("client", nil)
	require.Nil(t, loop.Start())
	defer loop.Close()

	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	connector := &countingConnector{Connector: nio.NewTCPConnector(loop, time.Second, nil)}
	c, err := New(cfg, loop, connector)
	require.Nil(t, err)

	// nothing listens on port 1
	req, err := protocol.NewRequest(http.MethodGet, "http://127.0.0.1:1/", protocol.Header{}, nil)
	require.Nil(t, err)
	_, err = c.Do(context.Background(), req)
	var connectErr *nio.ConnectError
	assert.ErrorAs(t, err, &connectErr)
	assert.Equal(t, 2, connector.connects())

	cfg.DisableRetry = true
	c, err = New(cfg, loop, connector)
	require.Nil(t, err)
	_, err = c.Do(context.Background(), req)
	assert.NotNil(t, err)
	assert.Equal(t, 3, connector.connects())
}

func TestClientInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxResponseSize = "huge"
	_, err := New(cfg, nil, &fakeConnector{})
	assert.NotNil(t, err)
}
