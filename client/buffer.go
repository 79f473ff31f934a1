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
	"errors"
	"fmt"
	"strconv"

	"github.com/caiflower/evhttp/pkg/future"
	"github.com/caiflower/evhttp/pkg/tools"
	"github.com/caiflower/evhttp/web/protocol"
)

var ErrResponseBodyClosed = errors.New("response body closed unexpectedly")

// BufferResponse reads the streaming body of res into memory. A body larger than maxSize
// is closed and rejected with a ResponseTooLargeError; a negative maxSize disables the check.
// With decode set, gzip and br encoded bodies are decompressed.
func BufferResponse(res *protocol.Response, maxSize int64, decode bool) *future.Future[*protocol.Response] {
	body, ok := res.Body().(protocol.StreamingBody)
	if !ok {
		return future.Resolved(res)
	}
	if size := body.Size(); maxSize >= 0 && size > maxSize {
		body.Close()
		return future.Rejected[*protocol.Response](&protocol.ResponseTooLargeError{Size: size, Max: maxSize})
	}
	if body.Size() == 0 || !body.IsReadable() {
		body.Close()
		return future.Resolved(res.WithBody(protocol.NewBufferedBody(nil)))
	}

	var buf []byte
	result := future.New[*protocol.Response](body.Close)
	body.OnData(func(p []byte) {
		buf = append(buf, p...)
		if maxSize >= 0 && int64(len(buf)) > maxSize {
			result.Reject(&protocol.ResponseTooLargeError{Size: int64(len(buf)), Max: maxSize})
			buf = nil
			body.Close()
		}
	})
	body.OnError(func(err error) {
		result.Reject(fmt.Errorf("error while buffering response body: %w", err))
		body.Close()
	})
	body.OnEnd(func() {
		if !decode {
			result.Resolve(res.WithBody(protocol.NewBufferedBody(buf)))
			return
		}
		decoded, err := decodeBody(res, buf)
		if err != nil {
			result.Reject(err)
			return
		}
		result.Resolve(decoded)
	})
	body.OnClose(func() {
		result.Reject(ErrResponseBodyClosed)
	})
	return result
}

func decodeBody(res *protocol.Response, buf []byte) (*protocol.Response, error) {
	encoding := res.Header().Line("Content-Encoding")
	if encoding == "" {
		return res.WithBody(protocol.NewBufferedBody(buf)), nil
	}
	data, err := tools.Decompress(encoding, buf)
	if err != nil {
		return nil, err
	}
	return res.WithoutHeader("Content-Encoding").
		WithHeader("Content-Length", strconv.Itoa(len(data))).
		WithBody(protocol.NewBufferedBody(data)), nil
}
