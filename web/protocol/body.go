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

import "github.com/caiflower/evhttp/pkg/nio"

// Body is a message body. Size is the length in bytes or -1 when unknown.
type Body interface {
	Size() int64
}

// StreamingBody is a body delivered as a stream of data events.
type StreamingBody interface {
	Body
	nio.ReadableStream
}

// EmptyBody is a streaming body of size zero that never emits data or end.
type EmptyBody struct {
	nio.Emitter
	closed bool
}

func NewEmptyBody() *EmptyBody {
	return &EmptyBody{}
}

func (b *EmptyBody) Size() int64 {
	return 0
}

func (b *EmptyBody) IsReadable() bool {
	return !b.closed
}

func (b *EmptyBody) Pause() {}

func (b *EmptyBody) Resume() {}

func (b *EmptyBody) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.EmitClose()
	b.RemoveAllListeners()
}

// IsStreaming reports whether body delivers its content as events.
func IsStreaming(body Body) bool {
	_, ok := body.(StreamingBody)
	return ok
}
