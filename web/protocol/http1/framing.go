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
	"net/http"
	"strings"

	"github.com/caiflower/evhttp/web/protocol"
)

// Framing is how a message body is delimited on the wire.
type Framing int

const (
	NoBody Framing = iota
	LengthDelimited
	Chunked
	CloseDelimited
)

func (f Framing) String() string {
	switch f {
	case NoBody:
		return "none"
	case LengthDelimited:
		return "length"
	case Chunked:
		return "chunked"
	default:
		return "close"
	}
}

// RequestFraming selects the framing of a request body from a validated head.
func RequestFraming(h protocol.Header) (Framing, int64) {
	if h.Has("Transfer-Encoding") {
		return Chunked, -1
	}
	if n, err := ContentLength(h); err == nil && n > 0 {
		return LengthDelimited, n
	}
	return NoBody, 0
}

// ResponseFraming selects the framing of a response to a request with the given method.
func ResponseFraming(method string, res *protocol.Response) (Framing, int64, error) {
	if !ResponseHasBody(method, res.StatusCode()) {
		return NoBody, 0, nil
	}
	h := res.Header()
	if h.Has("Transfer-Encoding") {
		if !strings.EqualFold(h.Line("Transfer-Encoding"), "chunked") {
			return NoBody, 0, &ProtocolError{Status: http.StatusBadGateway, Reason: "unsupported Transfer-Encoding in response"}
		}
		return Chunked, -1, nil
	}
	n, err := ContentLength(h)
	if err != nil {
		return NoBody, 0, err
	}
	switch {
	case n == 0:
		return NoBody, 0, nil
	case n > 0:
		return LengthDelimited, n, nil
	}
	return CloseDelimited, -1, nil
}

// ResponseHasBody reports whether a response may carry a body at all.
func ResponseHasBody(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	if status < 200 || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	return true
}

// KeepAlive reports whether a message of proto with header h allows the connection to persist.
func KeepAlive(proto string, h protocol.Header) bool {
	if h.HasToken("Connection", "close") {
		return false
	}
	if proto == protocol.Version11 {
		return true
	}
	return h.HasToken("Connection", "keep-alive")
}
