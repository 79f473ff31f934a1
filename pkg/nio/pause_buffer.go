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
package nio

// PauseBuffer wraps a readable stream and holds back its events while paused.
// Resume replays the held data, then a held error, end or close, in that order.
type PauseBuffer struct {
	Emitter
	input  ReadableStream
	closed bool
	paused bool

	held       []byte
	heldErr    error
	heldEnd    bool
	heldClosed bool
}

func NewPauseBuffer(input ReadableStream) *PauseBuffer {
	b := &PauseBuffer{input: input}
	if !input.IsReadable() {
		b.closed = true
		return b
	}

	input.OnData(b.handleData)
	input.OnError(b.handleError)
	input.OnEnd(b.handleEnd)
	input.OnClose(b.handleClose)
	return b
}

func (b *PauseBuffer) IsReadable() bool {
	return !b.closed
}

func (b *PauseBuffer) Pause() {
	if b.closed {
		return
	}
	b.input.Pause()
	b.paused = true
}

func (b *PauseBuffer) Resume() {
	if b.closed {
		return
	}
	b.paused = false

	if len(b.held) > 0 {
		held := b.held
		b.held = nil
		b.EmitData(held)
		if b.paused || b.closed {
			return
		}
	}
	if b.heldErr != nil {
		b.EmitError(b.heldErr)
		b.Close()
		return
	}
	if b.heldEnd {
		b.heldEnd = false
		b.EmitEnd()
		b.Close()
		return
	}
	if b.heldClosed {
		b.Close()
		return
	}

	b.input.Resume()
}

func (b *PauseBuffer) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.held = nil
	b.paused = false

	b.input.Close()
	b.EmitClose()
	b.RemoveAllListeners()
}

func (b *PauseBuffer) handleData(p []byte) {
	if b.paused {
		b.held = append(b.held, p...)
		return
	}
	b.EmitData(p)
}

func (b *PauseBuffer) handleError(err error) {
	if b.paused {
		b.heldErr = err
		return
	}
	b.EmitError(err)
	b.Close()
}

func (b *PauseBuffer) handleEnd() {
	if b.paused {
		b.heldEnd = true
		return
	}
	if !b.closed {
		b.EmitEnd()
		b.Close()
	}
}

func (b *PauseBuffer) handleClose() {
	if b.paused {
		b.heldClosed = true
		return
	}
	b.Close()
}
