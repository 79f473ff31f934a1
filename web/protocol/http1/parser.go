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
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/caiflower/evhttp/web/protocol"
)

// DefaultMaxHeadSize bounds the request line and header fields of a message.
const DefaultMaxHeadSize = 8 * 1024

// ProtocolError is a malformed or unsupported message head.
// Status is the response status a server answers it with.
type ProtocolError struct {
	Status int
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

func badRequest(reason string) *ProtocolError {
	return &ProtocolError{Status: http.StatusBadRequest, Reason: reason}
}

// HeadReader collects bytes until the empty line that terminates a message head.
type HeadReader struct {
	buf       []byte
	limit     int
	scanned   int
	lineStart int
}

func NewHeadReader(limit int) *HeadReader {
	if limit <= 0 {
		limit = DefaultMaxHeadSize
	}
	return &HeadReader{limit: limit}
}

// Feed appends p. Once the head is complete it returns the head including its
// terminating empty line and the bytes that followed it; the reader is reset.
// Empty lines before the first line are skipped.
func (r *HeadReader) Feed(p []byte) (head, rest []byte, err error) {
	r.buf = append(r.buf, p...)
	for i := r.scanned; i < len(r.buf); i++ {
		if r.buf[i] != '\n' {
			continue
		}
		line := r.buf[r.lineStart:i]
		if len(line) > 0 && !(len(line) == 1 && line[0] == '\r') {
			r.lineStart = i + 1
			continue
		}
		if r.lineStart == 0 {
			r.buf = r.buf[i+1:]
			i = -1
			continue
		}
		if i+1 > r.limit {
			return nil, nil, r.tooLarge()
		}

		head, rest = r.buf[:i+1], r.buf[i+1:]
		r.buf, r.scanned, r.lineStart = nil, 0, 0
		return head, rest, nil
	}

	r.scanned = len(r.buf)
	if len(r.buf) > r.limit {
		return nil, nil, r.tooLarge()
	}
	return nil, nil, nil
}

// Buffered is the number of head bytes received so far.
func (r *HeadReader) Buffered() int {
	return len(r.buf)
}

func (r *HeadReader) tooLarge() error {
	r.buf = nil
	return &ProtocolError{Status: http.StatusRequestHeaderFieldsTooLarge, Reason: "request header fields too large"}
}

// lines walks the lines of a head. Strict mode requires CRLF terminators.
type lines struct {
	head   []byte
	strict bool
}

func (l *lines) next() ([]byte, bool, error) {
	if len(l.head) == 0 {
		return nil, false, nil
	}
	end := bytes.IndexByte(l.head, '\n')
	if end < 0 {
		return nil, false, badRequest("unterminated header line")
	}
	line := l.head[:end]
	l.head = l.head[end+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	} else if l.strict {
		return nil, false, badRequest("header line not terminated by CRLF")
	}
	if len(line) == 0 {
		return nil, false, nil
	}
	return line, true, nil
}

func (l *lines) fields() (protocol.Header, error) {
	var h protocol.Header
	for {
		line, ok, err := l.next()
		if err != nil || !ok {
			return h, err
		}
		if line[0] == ' ' || line[0] == '\t' {
			return h, badRequest("obsolete header line folding")
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 || !isToken(line[:colon]) {
			return h, badRequest("invalid header field name")
		}
		value := bytes.Trim(line[colon+1:], " \t")
		for _, c := range value {
			if (c < ' ' && c != '\t') || c == 0x7f {
				return h, badRequest("invalid header field value")
			}
		}
		h = h.WithAdded(string(line[:colon]), string(value))
	}
}

// ParseRequestHead tokenizes a request head produced by a HeadReader. The request
// URI is made absolute from the Host header; tls selects the https scheme.
func ParseRequestHead(head []byte, tls bool) (*protocol.Request, error) {
	l := &lines{head: head, strict: true}
	line, ok, err := l.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, badRequest("missing request line")
	}

	method, rest, ok := cut(line)
	if !ok || !isToken(method) {
		return nil, badRequest("invalid request line")
	}
	target, version, ok := cut(rest)
	if !ok || len(target) == 0 || bytes.IndexByte(version, ' ') >= 0 {
		return nil, badRequest("invalid request line")
	}
	for _, c := range target {
		if c <= ' ' || c == 0x7f {
			return nil, badRequest("invalid request target")
		}
	}
	proto, err := parseVersion(version)
	if err != nil {
		return nil, err
	}

	header, err := l.fields()
	if err != nil {
		return nil, err
	}
	if err = validateRequestHeader(header, proto); err != nil {
		return nil, err
	}

	scheme := "http"
	if tls {
		scheme = "https"
	}
	host := header.Get("Host")
	m, t := string(method), string(target)

	var uri string
	switch {
	case t[0] == '/':
		uri = scheme + "://" + host + t
	case m == http.MethodOptions && t == "*":
		uri = scheme + "://" + host
	case m == http.MethodConnect:
		if strings.Contains(t, "/") {
			return nil, badRequest("CONNECT method must use authority-form request target")
		}
		uri = scheme + "://" + t
	case strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://"):
		uri = t
	default:
		return nil, badRequest("invalid request target")
	}

	req, err := protocol.NewRequest(m, uri, header, nil)
	if err != nil {
		return nil, badRequest("invalid request target")
	}
	if req.URI().Host == "" && proto == protocol.Version11 {
		return nil, badRequest("invalid Host header value")
	}
	return req.WithProtocolVersion(proto).WithTarget(t), nil
}

func validateRequestHeader(h protocol.Header, proto string) error {
	hosts := h.Values("Host")
	if len(hosts) > 1 || proto == protocol.Version11 && len(hosts) == 0 {
		return badRequest("invalid Host header value")
	}

	if h.Has("Transfer-Encoding") {
		if !strings.EqualFold(h.Line("Transfer-Encoding"), "chunked") {
			return &ProtocolError{Status: http.StatusNotImplemented, Reason: "only chunked-encoding is allowed for Transfer-Encoding"}
		}
		if h.Has("Content-Length") {
			return badRequest("using both Transfer-Encoding: chunked and Content-Length is not allowed")
		}
	}
	if h.Has("Content-Length") {
		if _, err := ContentLength(h); err != nil {
			return err
		}
	}
	return nil
}

// ParseResponseHead tokenizes a response head. Bare LF line endings are accepted.
func ParseResponseHead(head []byte) (*protocol.Response, error) {
	l := &lines{head: head}
	line, ok, err := l.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, badRequest("missing status line")
	}

	version, rest, ok := cut(line)
	if !ok {
		return nil, badRequest("invalid status line")
	}
	proto, err := parseVersion(version)
	if err != nil {
		return nil, err
	}
	code, reason, _ := cut(rest)
	if len(code) != 3 {
		return nil, badRequest("invalid status code")
	}
	status, err := strconv.Atoi(string(code))
	if err != nil || status < 100 {
		return nil, badRequest("invalid status code")
	}

	header, err := l.fields()
	if err != nil {
		return nil, err
	}
	res := protocol.NewResponse(status, header, nil)
	return res.WithStatus(status, string(reason)).WithProtocolVersion(proto), nil
}

// ContentLength parses the Content-Length field. It returns -1 when the field is absent.
func ContentLength(h protocol.Header) (int64, error) {
	values := h.Values("Content-Length")
	if len(values) == 0 {
		return -1, nil
	}
	length := int64(-1)
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 || v[0] == '+' || length >= 0 && n != length {
			return -1, badRequest("the value of Content-Length is not valid")
		}
		length = n
	}
	return length, nil
}

func parseVersion(v []byte) (string, error) {
	switch string(v) {
	case "HTTP/1.1":
		return protocol.Version11, nil
	case "HTTP/1.0":
		return protocol.Version10, nil
	}
	if bytes.HasPrefix(v, []byte("HTTP/")) {
		return "", &ProtocolError{Status: http.StatusHTTPVersionNotSupported, Reason: "received message with invalid protocol version"}
	}
	return "", badRequest("invalid protocol version")
}

func cut(line []byte) (before, after []byte, found bool) {
	if i := bytes.IndexByte(line, ' '); i >= 0 {
		return line[:i], line[i+1:], true
	}
	return line, nil, false
}

func isToken(p []byte) bool {
	if len(p) == 0 {
		return false
	}
	for _, c := range p {
		if c >= 0x80 || !tokenChars[c] {
			return false
		}
	}
	return true
}

var tokenChars = func() (t [128]bool) {
	for c := '0'; c <= '9'; c++ {
		t[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		t[c] = true
		t[c-'a'+'A'] = true
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		t[c] = true
	}
	return
}()
