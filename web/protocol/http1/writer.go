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
package http1

import (
	"strconv"
	"strings"

	"github.com/caiflower/evhttp/web/protocol"
)

// AppendRequestHead serializes the request line and header fields of req.
func AppendRequestHead(dst []byte, req *protocol.Request) []byte {
	dst = append(dst, req.Method()...)
	dst = append(dst, ' ')
	dst = append(dst, req.Target()...)
	dst = append(dst, " HTTP/"...)
	dst = append(dst, req.ProtocolVersion()...)
	dst = append(dst, '\r', '\n')
	return appendFields(dst, req.Header())
}

// AppendResponseHead serializes the status line and header fields of res.
func AppendResponseHead(dst []byte, res *protocol.Response) []byte {
	dst = append(dst, "HTTP/"...)
	dst = append(dst, res.ProtocolVersion()...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(res.StatusCode()), 10)
	dst = append(dst, ' ')
	dst = append(dst, res.ReasonPhrase()...)
	dst = append(dst, '\r', '\n')
	return appendFields(dst, res.Header())
}

// appendFields skips fields that would break the framing of the head.
func appendFields(dst []byte, h protocol.Header) []byte {
	h.Each(func(name, value string) {
		if name == "" || strings.ContainsAny(name, "\r\n:") || strings.ContainsAny(value, "\r\n") {
			return
		}
		dst = append(dst, name...)
		dst = append(dst, ':', ' ')
		dst = append(dst, value...)
		dst = append(dst, '\r', '\n')
	})
	return append(dst, '\r', '\n')
}
