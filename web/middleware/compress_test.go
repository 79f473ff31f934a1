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
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompress(t *testing.T) {
	text := strings.Repeat("compressible ", 20)
	r := NewRunner(Compress(16), Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		return ok(text)
	}))

	cases := map[string]string{
		"gzip":               "gzip",
		"gzip, br":           "br",
		"br;q=0, gzip":       "gzip",
		"*":                  "br",
		"identity":           "",
		"gzip;q=0, br;q=0.0": "",
	}
	for accept, want := range cases {
		t.Run(accept, func(t *testing.T) {
			res, err := r.Handle(newRequest(t, nil).WithHeader("Accept-Encoding", accept)).Result()
			require.Nil(t, err)
			body := res.Body().(*protocol.BufferedBody)
			if want == "" {
				assert.False(t, res.Header().Has("Content-Encoding"))
				assert.Equal(t, text, body.String())
				return
			}
			assert.Equal(t, want, res.Header().Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", res.Header().Get("Vary"))
			assert.Equal(t, strconv.Itoa(len(body.Bytes())), res.Header().Get("Content-Length"))
			plain, err := tools.Decompress(want, body.Bytes())
			require.Nil(t, err)
			assert.Equal(t, text, string(plain))
		})
	}
}

func TestCompressSkips(t *testing.T) {
	small := NewRunner(Compress(1024), Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		return ok("tiny")
	}))
	res, err := small.Handle(newRequest(t, nil).WithHeader("Accept-Encoding", "gzip")).Result()
	require.Nil(t, err)
	assert.False(t, res.Header().Has("Content-Encoding"))

	encoded := NewRunner(Compress(0), Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		return future.Resolved(protocol.NewResponse(http.StatusOK, protocol.NewHeader("Content-Encoding", "zstd"), protocol.NewBufferedBodyString("raw")))
	}))
	res, err = encoded.Handle(newRequest(t, nil).WithHeader("Accept-Encoding", "gzip")).Result()
	require.Nil(t, err)
	assert.Equal(t, "zstd", res.Header().Get("Content-Encoding"))
	assert.Equal(t, "raw", res.Body().(*protocol.BufferedBody).String())

	noContent := NewRunner(Compress(0), Terminal(func(req *protocol.Request) *future.Future[*protocol.Response] {
		return future.Resolved(protocol.NewResponse(http.StatusNoContent, protocol.Header{}, nil))
	}))
	res, err = noContent.Handle(newRequest(t, nil).WithHeader("Accept-Encoding", "gzip")).Result()
	require.Nil(t, err)
	assert.False(t, res.Header().Has("Content-Encoding"))
}
