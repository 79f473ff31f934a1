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

// BodyStream bridges a raw byte stream into a message body with an optional declared length.
//
// With a declared length the stream ends as soon as that many bytes were delivered; bytes
// beyond it in the same chunk are dropped and counted by Excess. A raw end before the declared length becomes
// a PrematureBodyEndError. Closing the body closes the raw stream.
type BodyStream struct {
	nio.Emitter
	input    nio.ReadableStream
	size     int64
	position int64
	excess   int64
	closed   bool
}

func NewBodyStream(input nio.ReadableStream, size int64) *BodyStream {
	b := &BodyStream{input: input, size: size}

	input.OnData(b.handleData)
	input.OnError(func(err error) {
		b.EmitError(err)
		b.Close()
	})
	input.OnEnd(b.handleEnd)
	input.OnClose(b.Close)
	return b
}

func (b *BodyStream) Size() int64 {
	return b.size
}

// Position is the number of bytes delivered so far.
func (b *BodyStream) Position() int64 {
	return b.position
}

// Excess is the number of bytes that arrived past the declared length and were dropped.
func (b *BodyStream) Excess() int64 {
	return b.excess
}

func (b *BodyStream) IsReadable() bool {
	return !b.closed && b.input.IsReadable()
}

func (b *BodyStream) Pause() {
	b.input.Pause()
}

func (b *BodyStream) Resume() {
	b.input.Resume()
}

func (b *BodyStream) handleData(p []byte) {
	if b.closed {
		return
	}
	if b.size >= 0 && b.position+int64(len(p)) > b.size {
		b.excess += b.position + int64(len(p)) - b.size
		p = p[:b.size-b.position]
	}
	b.position += int64(len(p))
	if len(p) > 0 {
		b.EmitData(p)
	}
	if b.size >= 0 && b.position >= b.size {
		b.handleEnd()
	}
}

func (b *BodyStream) handleEnd() {
	if b.closed {
		return
	}
	if b.size >= 0 && b.position != b.size {
		b.EmitError(&PrematureBodyEndError{Received: b.position, Expected: b.size})
	} else {
		b.EmitEnd()
	}
	b.Close()
}

func (b *BodyStream) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.input.Close()
	b.EmitClose()
	b.RemoveAllListeners()
}
