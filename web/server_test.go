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
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/middleware"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg Config, handlers ...middleware.Middleware) *HttpServer {
	cfg.Addr = "127.0.0.1:0"
	s, err := NewHttpServer(cfg, handlers...)
	require.Nil(t, err)
	require.Nil(t, s.Start())
	t.Cleanup(s.Close)
	return s
}

func echo() middleware.Middleware {
	return middleware.Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		body, ok := req.Body().(*protocol.BufferedBody)
		if !ok {
			return future.Resolved(protocol.NewResponse(http.StatusInternalServerError, protocol.Header{}, nil))
		}
		text := fmt.Sprintf("%s %s %s", req.Method(), req.URI().Path, body.String())
		return future.Resolved(protocol.NewResponse(http.StatusOK, protocol.NewHeader("Content-Type", "text/plain"), protocol.NewBufferedBodyString(text)))
	})
}

func readResponse(t *testing.T, r *bufio.Reader, method string) (*http.Response, string) {
	res, err := http.ReadResponse(r, &http.Request{Method: method})
	require.Nil(t, err)
	body, err := io.ReadAll(res.Body)
	require.Nil(t, err)
	return res, string(body)
}

func TestHttpServerKeepAlive(t *testing.T) {
	s := startServer(t, DefaultConfig(), echo())

	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.Nil(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	_, err = io.WriteString(conn, "POST /a HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\nX-Request-Id: abc\r\n\r\nhello")
	require.Nil(t, err)
	res, body := readResponse(t, r, http.MethodPost)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "POST /a hello", body)
	assert.Equal(t, "abc", res.Header.Get("X-Request-Id"))
	assert.False(t, res.Close)

	_, err = io.WriteString(conn, "POST /b HTTP/1.1\r\nHost: localhost\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n2\r\nde\r\n0\r\n\r\n")
	require.Nil(t, err)
	res, body = readResponse(t, r, http.MethodPost)
	assert.Equal(t, "POST /b abcde", body)
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
	assert.NotEqual(t, "abc", res.Header.Get("X-Request-Id"))

	_, err = io.WriteString(conn, "GET /c HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	require.Nil(t, err)
	res, body = readResponse(t, r, http.MethodGet)
	assert.Equal(t, "GET /c ", body)
	assert.True(t, res.Close)

	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestHttpServerCompression(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compression = Compression{Enable: true, MinSize: "0"}
	s := startServer(t, cfg, echo())

	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.Nil(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	_, err = io.WriteString(conn, "GET /zip HTTP/1.1\r\nHost: localhost\r\nAccept-Encoding: gzip\r\n\r\n")
	require.Nil(t, err)
	res, body := readResponse(t, r, http.MethodGet)
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	plain, err := tools.Gunzip([]byte(body))
	require.Nil(t, err)
	assert.Equal(t, "GET /zip ", string(plain))

	_, err = io.WriteString(conn, "GET /plain HTTP/1.1\r\nHost: localhost\r\n\r\n")
	require.Nil(t, err)
	res, body = readResponse(t, r, http.MethodGet)
	assert.Empty(t, res.Header.Get("Content-Encoding"))
	assert.Equal(t, "GET /plain ", body)
}

func TestHttpServerBodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PostMaxSize = "4"
	s := startServer(t, cfg, echo())

	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.Nil(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	_, err = io.WriteString(conn, "POST /big HTTP/1.1\r\nHost: localhost\r\nContent-Length: 10\r\n\r\n0123456789")
	require.Nil(t, err)
	_, body := readResponse(t, r, http.MethodPost)
	assert.Equal(t, "POST /big ", body)
}

func TestHttpServerBadRequest(t *testing.T) {
	s := startServer(t, DefaultConfig(), echo())

	failures := make(chan error, 1)
	s.OnError(func(err error) {
		select {
		case failures <- err:
		default:
		}
	})

	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.Nil(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = io.WriteString(conn, "GET / HTTP/1.1\r\n\r\n")
	require.Nil(t, err)
	res, body := readResponse(t, bufio.NewReader(conn), http.MethodGet)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"type":"InvalidArgument","message":"invalid Host header value"}}`, body)
	assert.NotNil(t, <-failures)
}

func TestHttpServerClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s, err := NewHttpServer(cfg, echo())
	require.Nil(t, err)
	assert.Equal(t, "HTTP:default", s.Name())
	assert.NotNil(t, s.Limit())
	require.Nil(t, s.Start())

	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.Nil(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	// an idle keep-alive connection is closed with the server
	_, err = io.WriteString(conn, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	require.Nil(t, err)
	r := bufio.NewReader(conn)
	readResponse(t, r, http.MethodGet)

	s.Close()
	_, err = r.ReadByte()
	assert.NotNil(t, err)
	s.Close()
}

func TestHttpServerStreaming(t *testing.T) {
	cfg := DefaultConfig()
	s, err := NewHttpServer(cfg, middleware.StreamingRequest, echo())
	require.Nil(t, err)
	assert.Nil(t, s.Limit())
}
