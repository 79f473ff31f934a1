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

	"github.com/caiflower/evhttp/pkg/nio"
)

var chunkTerminator = []byte("0\r\n\r\n")

// EncodeChunk frames p as one chunk. An empty p yields nil since a zero size chunk would end the body.
func EncodeChunk(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	size := strconv.FormatInt(int64(len(p)), 16)
	out := make([]byte, 0, len(size)+len(p)+4)
	out = append(out, size...)
	out = append(out, '\r', '\n')
	out = append(out, p...)
	return append(out, '\r', '\n')
}

// ChunkedEncoder emits the data of its input stream in chunked transfer coding.
type ChunkedEncoder struct {
	nio.Emitter
	input  nio.ReadableStream
	closed bool
}

func NewChunkedEncoder(input nio.ReadableStream) *ChunkedEncoder {
	c := &ChunkedEncoder{input: input}

	input.OnData(c.handleData)
	input.OnEnd(c.handleEnd)
	input.OnError(c.handleError)
	input.OnClose(c.Close)
	return c
}

func (c *ChunkedEncoder) IsReadable() bool {
	return !c.closed && c.input.IsReadable()
}

func (c *ChunkedEncoder) Pause() {
	c.input.Pause()
}

func (c *ChunkedEncoder) Resume() {
	c.input.Resume()
}

func (c *ChunkedEncoder) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.input.Close()

	c.EmitClose()
	c.RemoveAllListeners()
}

func (c *ChunkedEncoder) handleData(p []byte) {
	if c.closed {
		return
	}
	if chunk := EncodeChunk(p); chunk != nil {
		c.EmitData(chunk)
	}
}

func (c *ChunkedEncoder) handleEnd() {
	if c.closed {
		return
	}
	c.EmitData(chunkTerminator)
	c.EmitEnd()
	c.Close()
}

func (c *ChunkedEncoder) handleError(err error) {
	if c.closed {
		return
	}
	c.EmitError(err)
	c.Close()
}
