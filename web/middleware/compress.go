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

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/protocol"
)

const DefaultCompressMinSize = 1024

// Compress encodes buffered response bodies of at least minSize bytes with br or gzip,
// preferring br when the client accepts both. Streaming bodies pass through untouched.
func Compress(minSize int64) Middleware {
	if minSize < 0 {
		minSize = DefaultCompressMinSize
	}
	return MiddlewareFunc(func(req *protocol.Request, next Handler) *future.Future[*protocol.Response] {
		result := invoke(next, req)
		encoding := acceptedEncoding(req.Header())
		if encoding == "" || req.Method() == http.MethodHead {
			return result
		}
		return future.Chain(result, func(res *protocol.Response) *future.Future[*protocol.Response] {
			return future.Resolved(compress(res, encoding, minSize))
		})
	})
}

func compress(res *protocol.Response, encoding string, minSize int64) *protocol.Response {
	body, ok := res.Body().(*protocol.BufferedBody)
	if !ok || body.Size() < minSize || res.Header().Has("Content-Encoding") {
		return res
	}
	if status := res.StatusCode(); status < 200 || status == http.StatusNoContent || status == http.StatusNotModified {
		return res
	}

	var (
		out []byte
		err error
	)
	if encoding == "br" {
		out, err = tools.Brotli(body.Bytes())
	} else {
		out, err = tools.Gzip(body.Bytes())
	}
	if err != nil {
		return res
	}
	return res.WithHeader("Content-Encoding", encoding).
		WithHeader("Content-Length", strconv.Itoa(len(out))).
		WithAddedHeader("Vary", "Accept-Encoding").
		WithBody(protocol.NewBufferedBody(out))
}

// acceptedEncoding picks br or gzip from Accept-Encoding. A q value of 0 refuses a coding.
func acceptedEncoding(h protocol.Header) string {
	accepted := map[string]bool{}
	for _, v := range h.Values("Accept-Encoding") {
		for _, item := range strings.Split(v, ",") {
			name, params, _ := strings.Cut(strings.TrimSpace(item), ";")
			name = strings.ToLower(strings.TrimSpace(name))
			q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
			if q == "q=0" || strings.HasPrefix(q, "q=0.") && strings.Trim(q[4:], "0") == "" {
				accepted[name] = false
				continue
			}
			if _, seen := accepted[name]; !seen {
				accepted[name] = true
			}
		}
	}
	for _, name := range []string{"br", "gzip"} {
		if on, ok := accepted[name]; ok {
			if on {
				return name
			}
			continue
		}
		if accepted["*"] {
			return name
		}
	}
	return ""
}
