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
package protocol

import (
	"net/http"
	"net/url"
)

const (
	Version11 = "1.1"
	Version10 = "1.0"
)

// Request is an immutable HTTP request. With* methods return modified copies.
type Request struct {
	method string
	uri    *url.URL
	target string
	proto  string
	header Header
	body   Body
	attrs  map[string]interface{}
}

// NewRequest parses rawURL leniently; whether it is usable as an absolute target is checked on send.
func NewRequest(method, rawURL string, header Header, body Body) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = NewBufferedBody(nil)
	}
	return &Request{method: method, uri: u, proto: Version11, header: header, body: body}, nil
}

func (r *Request) clone() *Request {
	c := *r
	return &c
}

func (r *Request) Method() string {
	return r.method
}

func (r *Request) URI() *url.URL {
	return r.uri
}

// Target is the request-target of the request line: the raw target for parsed requests,
// otherwise the path and query of the URI.
func (r *Request) Target() string {
	if r.target != "" {
		return r.target
	}
	target := r.uri.EscapedPath()
	if target == "" {
		target = "/"
	}
	if r.uri.RawQuery != "" {
		target += "?" + r.uri.RawQuery
	}
	return target
}

func (r *Request) ProtocolVersion() string {
	return r.proto
}

func (r *Request) Header() Header {
	return r.header
}

func (r *Request) Body() Body {
	return r.body
}

func (r *Request) Attribute(name string) interface{} {
	return r.attrs[name]
}

func (r *Request) WithMethod(method string) *Request {
	c := r.clone()
	c.method = method
	return c
}

func (r *Request) WithURI(u *url.URL) *Request {
	c := r.clone()
	c.uri = u
	c.target = ""
	return c
}

func (r *Request) WithTarget(target string) *Request {
	c := r.clone()
	c.target = target
	return c
}

func (r *Request) WithProtocolVersion(proto string) *Request {
	c := r.clone()
	c.proto = proto
	return c
}

func (r *Request) WithHeaders(header Header) *Request {
	c := r.clone()
	c.header = header
	return c
}

func (r *Request) WithHeader(name, value string) *Request {
	return r.WithHeaders(r.header.With(name, value))
}

func (r *Request) WithAddedHeader(name, value string) *Request {
	return r.WithHeaders(r.header.WithAdded(name, value))
}

func (r *Request) WithoutHeader(name string) *Request {
	return r.WithHeaders(r.header.Without(name))
}

func (r *Request) WithBody(body Body) *Request {
	c := r.clone()
	c.body = body
	return c
}

func (r *Request) WithAttribute(name string, value interface{}) *Request {
	c := r.clone()
	c.attrs = make(map[string]interface{}, len(r.attrs)+1)
	for k, v := range r.attrs {
		c.attrs[k] = v
	}
	c.attrs[name] = value
	return c
}

// Response is an immutable HTTP response. With* methods return modified copies.
type Response struct {
	status int
	reason string
	proto  string
	header Header
	body   Body
}

// NewResponse uses the standard reason phrase of status and an empty buffered body when body is nil.
func NewResponse(status int, header Header, body Body) *Response {
	if body == nil {
		body = NewBufferedBody(nil)
	}
	return &Response{status: status, reason: http.StatusText(status), proto: Version11, header: header, body: body}
}

func (r *Response) clone() *Response {
	c := *r
	return &c
}

func (r *Response) StatusCode() int {
	return r.status
}

func (r *Response) ReasonPhrase() string {
	return r.reason
}

func (r *Response) ProtocolVersion() string {
	return r.proto
}

func (r *Response) Header() Header {
	return r.header
}

func (r *Response) Body() Body {
	return r.body
}

func (r *Response) WithStatus(status int, reason string) *Response {
	c := r.clone()
	c.status = status
	if reason == "" {
		reason = http.StatusText(status)
	}
	c.reason = reason
	return c
}

func (r *Response) WithProtocolVersion(proto string) *Response {
	c := r.clone()
	c.proto = proto
	return c
}

func (r *Response) WithHeaders(header Header) *Response {
	c := r.clone()
	c.header = header
	return c
}

func (r *Response) WithHeader(name, value string) *Response {
	return r.WithHeaders(r.header.With(name, value))
}

func (r *Response) WithAddedHeader(name, value string) *Response {
	return r.WithHeaders(r.header.WithAdded(name, value))
}

func (r *Response) WithoutHeader(name string) *Response {
	return r.WithHeaders(r.header.Without(name))
}

func (r *Response) WithBody(body Body) *Response {
	c := r.clone()
	c.body = body
	return c
}
