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

// ThroughStream is an in-memory duplex stream: every chunk written is emitted as data.
// Writes while paused are still emitted but report backpressure; drain follows the next Resume.
type ThroughStream struct {
	Emitter
	readable bool
	writable bool
	closed   bool
	paused   bool
	drain    bool
}

func NewThroughStream() *ThroughStream {
	return &ThroughStream{readable: true, writable: true}
}

func (s *ThroughStream) IsReadable() bool {
	return s.readable
}

func (s *ThroughStream) IsWritable() bool {
	return s.writable
}

func (s *ThroughStream) Pause() {
	s.paused = true
}

func (s *ThroughStream) Resume() {
	if s.drain {
		s.drain = false
		s.EmitDrain()
	}
	s.paused = false
}

// Paused reports whether the stream was asked to pause.
func (s *ThroughStream) Paused() bool {
	return s.paused
}

func (s *ThroughStream) Write(p []byte) bool {
	if !s.writable {
		return false
	}

	s.EmitData(p)
	if s.paused {
		s.drain = true
		return false
	}
	return true
}

func (s *ThroughStream) End(p []byte) {
	if !s.writable {
		return
	}
	if len(p) > 0 {
		s.Write(p)
	}

	s.readable = false
	s.writable = false
	s.paused = false
	s.drain = false

	s.EmitEnd()
	s.Close()
}

func (s *ThroughStream) Close() {
	if s.closed {
		return
	}

	s.readable = false
	s.writable = false
	s.closed = true
	s.paused = false
	s.drain = false

	s.EmitClose()
	s.RemoveAllListeners()
}
