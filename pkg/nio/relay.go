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

// Relay is a readable stream fed by its owner. Pause and Resume are forwarded to the
// upstream stream; closing the relay never closes the upstream, and a paused upstream
// is resumed on close so that a shared connection keeps flowing.
type Relay struct {
	Emitter
	upstream ReadableStream
	closed   bool
	paused   bool
}

func NewRelay(upstream ReadableStream) *Relay {
	return &Relay{upstream: upstream}
}

func (r *Relay) IsReadable() bool {
	return !r.closed
}

func (r *Relay) Pause() {
	if r.closed || r.paused {
		return
	}
	r.paused = true
	if r.upstream != nil {
		r.upstream.Pause()
	}
}

func (r *Relay) Resume() {
	if r.closed || !r.paused {
		return
	}
	r.paused = false
	if r.upstream != nil {
		r.upstream.Resume()
	}
}

// Push emits p as data.
func (r *Relay) Push(p []byte) {
	if !r.closed {
		r.EmitData(p)
	}
}

// Finish emits end followed by close.
func (r *Relay) Finish() {
	if r.closed {
		return
	}
	r.EmitEnd()
	r.Close()
}

// Fail emits err followed by close.
func (r *Relay) Fail(err error) {
	if r.closed {
		return
	}
	r.EmitError(err)
	r.Close()
}

func (r *Relay) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.paused {
		r.paused = false
		if r.upstream != nil {
			r.upstream.Resume()
		}
	}

	r.EmitClose()
	r.RemoveAllListeners()
}
